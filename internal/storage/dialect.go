package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// Dialect captures the differences between the supported SQL backends.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string
	// Goose is the dialect name understood by goose and the migrations directory.
	Goose string
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
	// returning means INSERT ... RETURNING id replaces LastInsertId.
	returning bool
	// contains is a case-sensitive substring predicate; %s is the column.
	contains string
}

var dialects = map[string]Dialect{
	"sqlite3": {
		Name:     "sqlite3",
		Goose:    "sqlite3",
		contains: "instr(%s, ?) > 0",
	},
	"mysql": {
		Name:     "mysql",
		Goose:    "mysql",
		contains: "LOCATE(CAST(? AS BINARY), CAST(%s AS BINARY)) > 0",
	},
	"postgres": {
		Name:      "pgx",
		Goose:     "postgres",
		numbered:  true,
		returning: true,
		contains:  "strpos(%s, ?) > 0",
	},
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return dialects["sqlite3"], nil
	case "mysql":
		return dialects["mysql"], nil
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// containsClause returns the substring predicate for column. It takes one argument.
func (d Dialect) containsClause(column string) string {
	return fmt.Sprintf(d.contains, column)
}

// timeArg converts a timestamp into the form the backend compares correctly.
func (d Dialect) timeArg(t time.Time) any {
	if d.Name == "sqlite3" {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (d Dialect) migrationsDir() string {
	return "migrations/" + d.Goose
}

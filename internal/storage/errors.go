package storage

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("unique constraint violated")
	// ErrForeignKey is returned when an insert references a missing row.
	ErrForeignKey = errors.New("foreign key constraint violated")
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps driver-specific constraint errors onto the storage sentinels.
// Any other error is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Join(ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return errors.Join(ErrForeignKey, err)
		}
		return err
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDuplicateEntry:
			return errors.Join(ErrDuplicate, err)
		case mysqlNoReferencedRow:
			return errors.Join(ErrForeignKey, err)
		}
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Join(ErrDuplicate, err)
		case pgForeignKeyViolation:
			return errors.Join(ErrForeignKey, err)
		}
	}
	return err
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selaski/internal/config"
	"selaski/internal/models"
)

func newMockStore(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := NewStore(db, driver)
	require.NoError(t, err)
	return store, mock
}

func TestRebind(t *testing.T) {
	pg, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.Rebind("SELECT 1 WHERE a = ? AND b = ?"))

	my, err := DialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE a = ?", my.Rebind("SELECT 1 WHERE a = ?"))

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestMySQLCreateUserDuplicate(t *testing.T) {
	store, mock := newMockStore(t, "mysql")

	mock.ExpectExec(`INSERT INTO users (name, email) VALUES (?, ?)`).
		WithArgs("Juan", "juan@example.com").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(`INSERT INTO users (name, email) VALUES (?, ?)`).
		WithArgs("Juan", "juan@example.com").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	user := &models.User{Name: "Juan", Email: "juan@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	assert.Equal(t, int64(3), user.ID)

	err := store.CreateUser(context.Background(), &models.User{Name: "Juan", Email: "juan@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLListMessagesQuery(t *testing.T) {
	store, mock := newMockStore(t, "mysql")
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := after.Add(time.Hour)

	mock.ExpectQuery(`SELECT id, content, user_id, created_at FROM messages WHERE user_id = ?` +
		` AND LOCATE(CAST(? AS BINARY), CAST(content AS BINARY)) > 0` +
		` AND created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`).
		WithArgs(int64(7), "hola", after, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "user_id", "created_at"}).
			AddRow(int64(11), "hola", int64(7), at))

	got, err := store.ListMessages(context.Background(), MessageFilter{UserID: 7, Content: "hola", After: after, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].ID)
	assert.True(t, at.Equal(got[0].CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertUsesReturning(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO messages (content, user_id, created_at) VALUES ($1, $2, $3) RETURNING id`).
		WithArgs("hola", int64(4), at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectQuery(`INSERT INTO messages (content, user_id, created_at) VALUES ($1, $2, $3) RETURNING id`).
		WithArgs("hola", int64(999), at).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	msg := &models.Message{Content: "hola", UserID: 4, CreatedAt: at}
	require.NoError(t, store.CreateMessage(context.Background(), msg))
	assert.Equal(t, int64(21), msg.ID)

	err := store.CreateMessage(context.Background(), &models.Message{Content: "hola", UserID: 999, CreatedAt: at})
	assert.ErrorIs(t, err, ErrForeignKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDuplicateAndLookup(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectQuery(`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`).
		WithArgs("Juan", "juan@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`SELECT id, name, email FROM users WHERE id = $1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))
	mock.ExpectQuery(`SELECT id, content, user_id, created_at FROM messages WHERE user_id = $1` +
		` AND strpos(content, $2) > 0 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(5), "x").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "user_id", "created_at"}))

	err := store.CreateUser(context.Background(), &models.User{Name: "Juan", Email: "juan@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.FindUserByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.ListMessages(context.Background(), MessageFilter{UserID: 5, Content: "x"})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	other := errors.New("connection reset")
	assert.Nil(t, classify(nil))
	assert.Same(t, other, classify(other))

	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), ErrDuplicate)
	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}), ErrForeignKey)
	assert.NotErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrBusy}), ErrDuplicate)

	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1062}), ErrDuplicate)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1452}), ErrForeignKey)
	assert.NotErrorIs(t, classify(&mysql.MySQLError{Number: 1213}), ErrDuplicate)

	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "23505"}), ErrDuplicate)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "23503"}), ErrForeignKey)
	assert.NotErrorIs(t, classify(&pgconn.PgError{Code: "40001"}), ErrDuplicate)
}

func TestBuildDSN(t *testing.T) {
	my, _ := DialectFor("mysql")
	dsn, err := buildDSN(my, config.DatabaseConfig{Host: "db", Port: 3306, Username: "app", Password: "pw", DBName: "selaski", Params: "charset=utf8mb4"})
	require.NoError(t, err)
	assert.Equal(t, "app:pw@tcp(db:3306)/selaski?charset=utf8mb4&parseTime=true", dsn)

	dsn, err = buildDSN(my, config.DatabaseConfig{DSN: "app@tcp(db)/x?parseTime=false"})
	require.NoError(t, err)
	assert.Equal(t, "app@tcp(db)/x?parseTime=false", dsn)

	pg, _ := DialectFor("postgres")
	dsn, err = buildDSN(pg, config.DatabaseConfig{Host: "db", Port: 5432, Username: "app", Password: "pw", DBName: "selaski", Params: "sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@db:5432/selaski?sslmode=disable", dsn)

	lite, _ := DialectFor("sqlite")
	_, err = buildDSN(lite, config.DatabaseConfig{})
	assert.Error(t, err)

	dsn, err = buildDSN(lite, config.DatabaseConfig{DSN: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:?_foreign_keys=on", dsn)

	dsn, err = buildDSN(lite, config.DatabaseConfig{DSN: "data.db?_busy_timeout=5000"})
	require.NoError(t, err)
	assert.Equal(t, "data.db?_busy_timeout=5000&_foreign_keys=on", dsn)

	dsn, err = buildDSN(lite, config.DatabaseConfig{DSN: "data.db?_foreign_keys=off"})
	require.NoError(t, err)
	assert.Equal(t, "data.db?_foreign_keys=off", dsn)
}

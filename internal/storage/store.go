package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"selaski/internal/models"
)

// UserFinder looks users up by id. Store implements it; the redis cache decorates it.
type UserFinder interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// MessageFilter narrows ListMessages. Zero values disable a filter.
type MessageFilter struct {
	UserID  int64
	Content string
	After   time.Time
	Limit   int
}

// Store runs the typed queries for users and messages.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore builds a Store for db speaking the given driver's dialect.
func NewStore(db *sql.DB, driver string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindUserByID returns ErrNotFound when no user has the id.
func (s *Store) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT id, name, email FROM users WHERE id = ?`), id,
	).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts user and sets its ID. A taken email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	id, err := s.insert(ctx,
		`INSERT INTO users (name, email) VALUES (?, ?)`,
		user.Name, user.Email,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return nil
}

// CreateMessage inserts msg and sets its ID. A missing user yields ErrForeignKey.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	id, err := s.insert(ctx,
		`INSERT INTO messages (content, user_id, created_at) VALUES (?, ?, ?)`,
		msg.Content, msg.UserID, s.dialect.timeArg(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns the user's messages newest first.
func (s *Store) ListMessages(ctx context.Context, filter MessageFilter) ([]*models.Message, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, content, user_id, created_at FROM messages WHERE user_id = ?`)
	args := []any{filter.UserID}
	if filter.Content != "" {
		b.WriteString(" AND ")
		b.WriteString(s.dialect.containsClause("content"))
		args = append(args, filter.Content)
	}
	if !filter.After.IsZero() {
		b.WriteString(" AND created_at >= ?")
		args = append(args, s.dialect.timeArg(filter.After))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.Content, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.returning {
		var id int64
		err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, classify(err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Package message creates messages on behalf of existing users.
package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"selaski/internal/apperr"
	"selaski/internal/models"
	"selaski/internal/storage"
	"selaski/internal/validation"
)

// Repository persists messages.
type Repository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
}

// Service handles message creation.
type Service struct {
	repo  Repository
	users storage.UserFinder
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService builds a message service.
func NewService(repo Repository, users storage.UserFinder, opts ...Option) *Service {
	s := &Service{repo: repo, users: users, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the POST /messages body. UserID is a pointer so a missing
// field is told apart from an explicit zero.
type CreateInput struct {
	Content string `json:"content" validate:"notblank"`
	UserID  *int64 `json:"userId" validate:"required"`
}

// CreateMessage stores a message for an existing user and stamps createdAt.
func (s *Service) CreateMessage(ctx context.Context, in CreateInput) (*models.Message, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	userID := *in.UserID

	if userID <= 0 {
		return nil, apperr.NotFound("User not found")
	}
	if _, err := s.users.FindUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(fmt.Errorf("lookup user %d: %w", userID, err))
	}

	msg := &models.Message{
		Content: in.Content,
		UserID:  userID,
		// microseconds survive every supported backend unchanged
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		// user vanished between the lookup and the insert
		if errors.Is(err, storage.ErrForeignKey) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err)
	}
	return msg, nil
}

// Package user implements account creation and the per-user message listing.
package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"selaski/internal/apperr"
	"selaski/internal/models"
	"selaski/internal/storage"
	"selaski/internal/validation"
)

// Repository is the persistence the user service needs.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	ListMessages(ctx context.Context, filter storage.MessageFilter) ([]*models.Message, error)
}

// Service handles user creation and message queries scoped to a user.
type Service struct {
	repo  Repository
	users storage.UserFinder
}

// NewService builds a user service. users resolves existence checks and may be
// a cache in front of the same store as repo.
func NewService(repo Repository, users storage.UserFinder) *Service {
	return &Service{repo: repo, users: users}
}

// CreateInput is the POST /users body. Values are stored as sent; the 255
// character cap matches the narrowest backend column.
type CreateInput struct {
	Name  string `json:"name" validate:"notblank,max=255"`
	Email string `json:"email" validate:"required,max=255,email"`
}

// CreateUser validates in and persists a new user.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user := &models.User{Name: in.Name, Email: in.Email}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("Email already exists", err)
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// MessageQuery holds the raw query string of GET /users/:id/messages.
type MessageQuery struct {
	Content string `form:"content"`
	After   string `form:"after" validate:"omitempty,iso8601"`
	Limit   string `form:"limit" validate:"omitempty,positive_int"`
}

// ParseMessageQuery validates q and converts it into a filter. UserID is left unset.
func ParseMessageQuery(q MessageQuery) (storage.MessageFilter, error) {
	var filter storage.MessageFilter
	if err := validation.Struct(q); err != nil {
		return filter, err
	}
	filter.Content = q.Content
	if q.After != "" {
		after, err := validation.ParseTimestamp(q.After)
		if err != nil {
			return filter, validation.Field("after", "after must be a valid ISO 8601 date string")
		}
		filter.After = after
	}
	if limit := strings.TrimSpace(q.Limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return filter, validation.Field("limit", "limit must be an integer not less than 1")
		}
		filter.Limit = n
	}
	return filter, nil
}

// ListMessages returns the messages of userID matching filter, newest first.
func (s *Service) ListMessages(ctx context.Context, userID int64, filter storage.MessageFilter) ([]*models.Message, error) {
	if filter.Limit < 0 {
		return nil, validation.Field("limit", "limit must be an integer not less than 1")
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	filter.UserID = userID
	messages, err := s.repo.ListMessages(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return messages, nil
}

func (s *Service) ensureUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return apperr.NotFound("User not found")
	}
	if _, err := s.users.FindUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(fmt.Errorf("lookup user %d: %w", userID, err))
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"selaski/internal/models"
	"selaski/internal/storage"
)

const defaultUserTTL = 10 * time.Minute

// UserCache is a read-through cache in front of a storage.UserFinder.
// Only found users are cached; users are never updated or deleted so entries
// cannot go stale.
type UserCache struct {
	client *Client
	next   storage.UserFinder
	ttl    time.Duration
}

// NewUserCache wraps next with a redis cache. A non-positive ttl uses the default.
func NewUserCache(client *Client, next storage.UserFinder, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = defaultUserTTL
	}
	return &UserCache{client: client, next: next, ttl: ttl}
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// FindUserByID serves from redis when possible. Cache failures fall back to next.
func (c *UserCache) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	key := userKey(id)
	raw, err := c.client.Get(ctx, key)
	switch {
	case err == nil:
		var user models.User
		jsonErr := json.Unmarshal([]byte(raw), &user)
		if jsonErr == nil {
			return &user, nil
		}
		slog.Warn("discard corrupt cached user", "key", key, "error", jsonErr)
	case !errors.Is(err, ErrCacheMiss):
		slog.Warn("redis get failed", "key", key, "error", err)
	}

	user, err := c.next.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return user, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl); err != nil {
		slog.Warn("redis set failed", "key", key, "error", err)
	}
	return user, nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardtool-backend/internal/features/user/models"
)

// UserCache caches user rows for the profile endpoint. Entries are
// invalidated on login upsert and on verification status changes.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

func (c *UserCache) key(telegramID int64) string {
	return fmt.Sprintf("user:id:%d", telegramID)
}

func (c *UserCache) Set(ctx context.Context, u *models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(u.TelegramID), b, c.ttl).Err()
}

// Get returns (nil, nil) on a cache miss.
func (c *UserCache) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	v, err := c.client.Get(ctx, c.key(telegramID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *UserCache) Invalidate(ctx context.Context, telegramID int64) error {
	return c.client.Del(ctx, c.key(telegramID)).Err()
}

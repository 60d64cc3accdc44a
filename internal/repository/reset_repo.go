package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"site-inspector/internal/model"
)

const resetKeyPrefix = "pwreset:"

// ResetTokenRepository stores password-reset token hashes in Redis with a TTL.
type ResetTokenRepository struct {
	client *redis.Client
}

func NewResetTokenRepository(client *redis.Client) *ResetTokenRepository {
	return &ResetTokenRepository{client: client}
}

func (r *ResetTokenRepository) Save(ctx context.Context, tokenHash string, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, resetKeyPrefix+tokenHash, userID, ttl).Err(); err != nil {
		return storeErr("save reset token", err)
	}
	return nil
}

func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	userID, err := r.client.GetDel(ctx, resetKeyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrTokenNotFound
	}
	if err != nil {
		return "", storeErr("consume reset token", err)
	}
	return userID, nil
}

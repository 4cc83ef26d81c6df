// Package redisstore keeps the checkout lock and idempotency keys in Redis
// so they hold across every instance of the service.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Guard struct {
	client *redis.Client
	logger *zap.Logger
}

func NewGuard(client *redis.Client, logger *zap.Logger) *Guard {
	return &Guard{client: client, logger: logger}
}

func lockKey(userID string) string {
	return fmt.Sprintf("lock:checkout:%s", userID)
}

func idemKey(userID, key string) string {
	return fmt.Sprintf("idem:checkout:%s:%s", userID, key)
}

func (g *Guard) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, lockKey(userID), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, repository.ErrLockHeld
	}

	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, g.client, []string{lockKey(userID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			g.logger.Warn("Failed to release checkout lock", zap.String("user_id", userID), zap.Error(err))
		}
	}, nil
}

func (g *Guard) Lookup(ctx context.Context, userID, key string) (string, error) {
	val, err := g.client.Get(ctx, idemKey(userID, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup idempotency key: %w", err)
	}
	return val, nil
}

func (g *Guard) Remember(ctx context.Context, userID, key, orderID string, ttl time.Duration) error {
	if err := g.client.Set(ctx, idemKey(userID, key), orderID, ttl).Err(); err != nil {
		return fmt.Errorf("remember idempotency key: %w", err)
	}
	return nil
}

var (
	_ repository.CheckoutLocker   = (*Guard)(nil)
	_ repository.IdempotencyStore = (*Guard)(nil)
)

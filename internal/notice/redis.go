package notice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/smartaccess/config"
	"github.com/redis/go-redis/v9"
)

// RedisBoard shares notices between portal replicas. Expiry is left to Redis.
type RedisBoard struct {
	client *redis.Client
	prefix string
}

func NewRedisBoard(cfg config.RedisConfig) *RedisBoard {
	return &RedisBoard{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		prefix: cfg.KeyPrefix,
	}
}

func (b *RedisBoard) Post(ctx context.Context, scope, text string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.key(scope), text, ttl).Err(); err != nil {
		return fmt.Errorf("post notice: %w", err)
	}
	return nil
}

func (b *RedisBoard) Current(ctx context.Context, scope string) (string, error) {
	text, err := b.client.Get(ctx, b.key(scope)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("read notice: %w", err)
	}
	return text, nil
}

// Clear drops the notice of scope before its TTL runs out.
func (b *RedisBoard) Clear(ctx context.Context, scope string) error {
	if err := b.client.Del(ctx, b.key(scope)).Err(); err != nil {
		return fmt.Errorf("clear notice: %w", err)
	}
	return nil
}

func (b *RedisBoard) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBoard) Close() error {
	return b.client.Close()
}

func (b *RedisBoard) key(scope string) string {
	return fmt.Sprintf("%snotice:%s", b.prefix, scope)
}

var _ Board = (*RedisBoard)(nil)

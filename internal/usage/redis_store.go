// Package usage keeps per-template generation counters in Redis.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldTotal    = "total"
	fieldLastUsed = "last_used_at"
	formatPrefix  = "format:"
	dailyTTL      = 35 * 24 * time.Hour
)

// Stats is the usage summary of one template.
type Stats struct {
	Total      int64            `json:"total"`
	ByFormat   map[string]int64 `json:"byFormat"`
	Today      int64            `json:"today"`
	LastUsedAt time.Time        `json:"lastUsedAt,omitempty"`
}

// RedisStore implements usage counting using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a new Redis-backed usage store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "usage:",
		now:    time.Now,
	}
}

func (s *RedisStore) key(templateID string) string {
	return s.prefix + templateID
}

func (s *RedisStore) dailyKey(templateID string, day time.Time) string {
	return s.key(templateID) + ":day:" + day.UTC().Format("2006-01-02")
}

// IncrementUsage counts one generation of templateID in format.
func (s *RedisStore) IncrementUsage(ctx context.Context, templateID, format string) error {
	now := s.now()
	key := s.key(templateID)
	daily := s.dailyKey(templateID, now)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldTotal, 1)
		pipe.HIncrBy(ctx, key, formatPrefix+format, 1)
		pipe.HSet(ctx, key, fieldLastUsed, now.UTC().Format(time.RFC3339))
		pipe.Incr(ctx, daily)
		pipe.Expire(ctx, daily, dailyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// Usage reads the counters of templateID. Unknown templates have zero stats.
func (s *RedisStore) Usage(ctx context.Context, templateID string) (Stats, error) {
	fields, err := s.client.HGetAll(ctx, s.key(templateID)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read usage: %w", err)
	}

	stats := Stats{ByFormat: map[string]int64{}}
	for field, raw := range fields {
		switch {
		case field == fieldTotal:
			stats.Total, _ = strconv.ParseInt(raw, 10, 64)
		case field == fieldLastUsed:
			stats.LastUsedAt, _ = time.Parse(time.RFC3339, raw)
		case strings.HasPrefix(field, formatPrefix):
			n, _ := strconv.ParseInt(raw, 10, 64)
			stats.ByFormat[strings.TrimPrefix(field, formatPrefix)] = n
		}
	}

	today, err := s.client.Get(ctx, s.dailyKey(templateID, s.now())).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("read daily usage: %w", err)
	}
	stats.Today = today
	return stats, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

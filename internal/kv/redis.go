package kv

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisStore persists items as plain Redis string keys.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, log: log}, nil
}

func (s *RedisStore) GetItem(ctx context.Context, key string) (string, bool) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return "", false
	}
	return v, true
}

func (s *RedisStore) SetItem(ctx context.Context, key, value string) {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (s *RedisStore) RemoveItem(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis remove failed")
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

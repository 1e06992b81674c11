package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	sessionSetKey    = "sessions"
)

// RedisStore persists sessions in Redis, relying on key TTLs for
// expiry. Session IDs are additionally tracked in a set so List does
// not need a keyspace scan.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *RedisStore) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	if err := s.client.SAdd(ctx, sessionSetKey, session.ID).Err(); err != nil {
		return fmt.Errorf("failed to index session %s: %w", session.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return s.client.SRem(ctx, sessionSetKey, id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, sessionSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	// The set can lag behind key expiry; filter out dead entries and
	// opportunistically prune them.
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			live = append(live, id)
		} else {
			_ = s.client.SRem(ctx, sessionSetKey, id).Err()
		}
	}
	return live, nil
}

func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, sessionKeyPrefix+id, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to touch session %s: %w", id, err)
	}
	return ok, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

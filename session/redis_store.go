// Package session keeps server-side login sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found or expired")

// Data is the payload stored for each session id
type Data struct {
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore implements session storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient parses redisURL and verifies the server is reachable.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a store from an existing Redis client
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Create starts a session for userID and returns its id.
func (s *RedisStore) Create(ctx context.Context, userID uint) (string, error) {
	id := uuid.NewString()

	data, err := json.Marshal(Data{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return id, nil
}

// Lookup returns the user owning the session and slides its expiry.
func (s *RedisStore) Lookup(ctx context.Context, id string) (uint, error) {
	if id == "" {
		return 0, ErrNotFound
	}
	raw, err := s.client.GetEx(ctx, s.key(id), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, fmt.Errorf("unmarshal session: %w", err)
	}
	return data.UserID, nil
}

// Delete ends a session. Deleting an unknown id is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

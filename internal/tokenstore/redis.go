// Package tokenstore keeps the single active token of each user in Redis.
package tokenstore

import (
	"context"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/sso/internal/provider"
	"github.com/go-redis/redis/v8"
)

const DefaultPrefix = "sso:token:"

// Config holds the Redis token store settings
type Config struct {
	URL    string
	Prefix string

	// TTL expires tokens after the given duration. Zero keeps them until
	// they are replaced or revoked.
	TTL time.Duration
}

// RedisStore implements provider.TokenStore on a Redis server
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ provider.TokenStore = (*RedisStore)(nil)

// compareAndDelete deletes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisStore connects to the server at cfg.URL
func NewRedisStore(cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, cfg Config) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(username string) string {
	return s.prefix + username
}

// PutToken replaces the active token of username
func (s *RedisStore) PutToken(
	ctx context.Context,
	username string,
	token string,
) error {
	if err := s.client.Set(ctx, s.key(username), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) GetToken(
	ctx context.Context,
	username string,
) (
	string,
	error,
) {
	token, err := s.client.Get(ctx, s.key(username)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: token for %s", provider.ErrNotFound, username)
	} else if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return token, nil
}

// DeleteToken revokes token only while it is still the active one
func (s *RedisStore) DeleteToken(
	ctx context.Context,
	username string,
	token string,
) (
	bool,
	error,
) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{s.key(username)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) DeleteTokens(
	ctx context.Context,
	username string,
) error {
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

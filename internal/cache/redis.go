// Package cache stores serialized evaluation results keyed by
// session.CacheKey.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

var _ session.Cache = (*Redis)(nil)

// Redis implements session.Cache using Redis.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration for cached results.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects to the server at address.
func NewRedis(address string, opts ...Option) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{Addr: address}), opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		prefix: "makertron:result:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Get returns the cached outputs for key, if any.
func (r *Redis) Get(ctx context.Context, key string) ([]tessellate.Output, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var outputs []tessellate.Output
	if err := json.Unmarshal(val, &outputs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return outputs, true, nil
}

// Put stores outputs under key with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, outputs []tessellate.Output) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

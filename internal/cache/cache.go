// Package cache provides a small JSON cache in front of Redis, with an
// in-memory fallback for development and tests. Keys are namespaced under
// the "quizmaster:" prefix by the Redis implementation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache stores JSON-encoded values under string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern, e.g. "quiz:*".
	DeletePattern(ctx context.Context, pattern string) error
}

// GetOrSet reads key into dest, computing and storing the value on a miss.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// Memory is a process-local Cache. Good enough for single-node dev setups.
type Memory struct {
	mu sync.Mutex
	m  map[string]memEntry
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]memEntry)}
}

func (c *Memory) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (c *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = memEntry{data: data, expires: exp}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *Memory) DeletePattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
	return nil
}

package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SuspensionStore keeps one absolute expiry per client key.
type SuspensionStore interface {
	Get(ctx context.Context, key string) (expiresAt time.Time, ok bool, err error)
	Set(ctx context.Context, key string, expiresAt time.Time) error
	Clear(ctx context.Context, key string) error
}

const suspensionPrefix = "ban:"

// RedisSuspensionStore stores the expiry as unix milliseconds under
// "ban:<key>". The key also carries a Redis expiry so it disappears on its own.
type RedisSuspensionStore struct {
	rdb *redis.Client
}

func NewRedisSuspensionStore(rdb *redis.Client) *RedisSuspensionStore {
	return &RedisSuspensionStore{rdb: rdb}
}

func (s *RedisSuspensionStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := s.rdb.Get(ctx, suspensionPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get suspension: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt suspension value %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *RedisSuspensionStore) Set(ctx context.Context, key string, expiresAt time.Time) error {
	k := suspensionPrefix + key
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k, expiresAt.UnixMilli(), 0)
		pipe.ExpireAt(ctx, k, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set suspension: %w", err)
	}
	return nil
}

func (s *RedisSuspensionStore) Clear(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, suspensionPrefix+key).Err()
}

// MemorySuspensionStore is the in-process SuspensionStore.
type MemorySuspensionStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemorySuspensionStore() *MemorySuspensionStore {
	return &MemorySuspensionStore{entries: make(map[string]time.Time)}
}

func (s *MemorySuspensionStore) Get(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	return exp, ok, nil
}

func (s *MemorySuspensionStore) Set(_ context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = expiresAt
	return nil
}

func (s *MemorySuspensionStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// SuspendedError is returned while a client's suspension is active.
type SuspendedError struct {
	ExpiresAt time.Time
	Remaining time.Duration
}

func (e *SuspendedError) Error() string {
	return "suspended for " + FormatRemaining(e.Remaining)
}

// FormatRemaining renders a countdown as "<days>d <hours>h". Partial hours
// round up so an active suspension never shows as "0d 0h".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0d 0h"
	}
	hours := int64((d + time.Hour - 1) / time.Hour)
	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}

var (
	_ SuspensionStore = (*RedisSuspensionStore)(nil)
	_ SuspensionStore = (*MemorySuspensionStore)(nil)
)

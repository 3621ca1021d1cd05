package cachestore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store used for local development and tests.
// Expired entries are dropped lazily on access and swept by a cron janitor.
type MemoryStore struct {
	entries map[string]*memEntry
	mu      sync.Mutex
	cron    *cron.Cron
}

// NewMemory creates an in-memory store with a janitor sweeping on the given
// cadence. sweepMins <= 0 disables the janitor.
func NewMemory(sweepMins int) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memEntry),
	}

	if sweepMins > 0 {
		s.cron = cron.New()
		s.cron.AddFunc(fmt.Sprintf("@every %dm", sweepMins), s.sweep)
		s.cron.Start()
	}

	return s
}

// Get returns the value for key
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key with the given TTL
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Incr atomically increments the integer value at key, creating it at 1.
// A fresh counter carries no expiry; callers set one via Expire, matching
// the Redis INCR contract.
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.entries[key]
	if !ok || entry.expired(now) {
		s.entries[key] = &memEntry{value: "1"}
		return 1, nil
	}

	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value is not an integer: %w", err)
	}
	n++
	entry.value = strconv.FormatInt(n, 10)
	return n, nil
}

// Expire sets a TTL on an existing key
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(time.Now()) {
		return nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	return nil
}

// Exists reports whether key is present
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

// Del removes key
func (s *MemoryStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// TTL returns the remaining lifetime of key
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0, nil
	}
	remaining := time.Until(entry.expiresAt)
	if remaining < 0 {
		delete(s.entries, key)
		return 0, nil
	}
	return remaining, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor
func (s *MemoryStore) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return nil
}

// sweep drops expired entries
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of live entries, for tests and diagnostics
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

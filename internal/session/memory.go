package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/access-control/internal/domain"
)

type memoryEntry struct {
	token          string
	tokenExpiresAt time.Time
	expiresAt      time.Time
}

// MemoryCache is a process-local Cache. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache. A nil clock selects time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryCache) Put(_ context.Context, userID, token string, tokenExpiresAt time.Time, ttl time.Duration) error {
	if userID == "" {
		return errors.New("session: user id required")
	}
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = memoryEntry{
		token:          token,
		tokenExpiresAt: tokenExpiresAt,
		expiresAt:      c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) RemainingTTL(_ context.Context, userID string) (domain.SessionTTL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.liveLocked(userID, now)
	if !ok {
		return domain.SessionTTL{}, ErrNotFound
	}
	return domain.SessionTTL{
		UserID:         userID,
		Remaining:      entry.expiresAt.Sub(now),
		ExpiresAt:      entry.expiresAt,
		TokenExpiresAt: entry.tokenExpiresAt,
	}, nil
}

func (c *MemoryCache) Renew(_ context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.liveLocked(userID, now)
	if !ok {
		return ErrNotFound
	}
	entry.expiresAt = now.Add(ttl)
	c.entries[userID] = entry
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for userID, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, userID)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired ones not yet swept included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// liveLocked must be called with c.mu held.
func (c *MemoryCache) liveLocked(userID string, now time.Time) (memoryEntry, bool) {
	entry, ok := c.entries[userID]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.After(now) {
		delete(c.entries, userID)
		return memoryEntry{}, false
	}
	return entry, true
}

// Package session tracks the most recently issued access token per user together
// with a renewable time-to-live. The cache is bookkeeping for clients; token
// validity is always decided by the token's own signature and expiry.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/access-control/internal/domain"
)

// ErrNotFound is returned when no live entry exists for a user.
var ErrNotFound = errors.New("session entry not found")

// Cache is a per-user TTL store. Every method is atomic per key.
type Cache interface {
	// Put stores or overwrites the entry and restarts its countdown.
	Put(ctx context.Context, userID, token string, tokenExpiresAt time.Time, ttl time.Duration) error
	// RemainingTTL reports the live entry for userID or ErrNotFound.
	RemainingTTL(ctx context.Context, userID string) (domain.SessionTTL, error)
	// Renew restarts the countdown without touching the stored token.
	Renew(ctx context.Context, userID string, ttl time.Duration) error
	// Delete removes the entry; deleting a missing entry is not an error.
	Delete(ctx context.Context, userID string) error
}

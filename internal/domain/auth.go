package domain

import "time"

// TokenPair holds a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionTTL describes a session cache entry.
//
// ExpiresAt is the renewable cache countdown shown to clients. TokenExpiresAt is
// the expiry signed into the access token and is not moved by renewals.
type SessionTTL struct {
	UserID         string
	Remaining      time.Duration
	ExpiresAt      time.Time
	TokenExpiresAt time.Time
}

package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/access-control/internal/domain"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken is returned for bad signatures, malformed tokens or foreign secrets.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a correctly signed token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
)

// Claims describes the JWT payload of both token classes.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies access and refresh tokens.
// Each token class is signed with its own secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// IssuerOption customizes a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) IssuerOption {
	return func(ti *TokenIssuer) {
		if now != nil {
			ti.now = now
		}
	}
}

// WithTTLs overrides the default token lifetimes.
func WithTTLs(access, refresh time.Duration) IssuerOption {
	return func(ti *TokenIssuer) {
		ti.accessTTL = access
		ti.refreshTTL = refresh
	}
}

// NewTokenIssuer builds an issuer. Refresh tokens must outlive access tokens.
func NewTokenIssuer(accessSecret, refreshSecret string, opts ...IssuerOption) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	ti := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}

	if ti.accessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	if ti.refreshTTL <= ti.accessTTL {
		return nil, fmt.Errorf("refresh ttl %s must exceed access ttl %s", ti.refreshTTL, ti.accessTTL)
	}
	return ti, nil
}

// AccessTTL returns the access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration {
	return ti.accessTTL
}

// IssueAccessToken signs a short-lived access token for userID.
func (ti *TokenIssuer) IssueAccessToken(userID string) (string, time.Time, error) {
	return ti.sign(userID, ti.accessSecret, ti.now(), ti.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for userID.
func (ti *TokenIssuer) IssueRefreshToken(userID string) (string, time.Time, error) {
	return ti.sign(userID, ti.refreshSecret, ti.now(), ti.refreshTTL)
}

// IssuePair mints an access and a refresh token from the same instant.
func (ti *TokenIssuer) IssuePair(userID string) (domain.TokenPair, error) {
	now := ti.now()

	access, accessExp, err := ti.sign(userID, ti.accessSecret, now, ti.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := ti.sign(userID, ti.refreshSecret, now, ti.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (ti *TokenIssuer) VerifyAccessToken(token string) (*Claims, error) {
	return ti.verify(token, ti.accessSecret)
}

// VerifyRefreshToken validates a refresh token and returns its claims.
func (ti *TokenIssuer) VerifyRefreshToken(token string) (*Claims, error) {
	return ti.verify(token, ti.refreshSecret)
}

// IdentifyAccessToken returns the user bound to a correctly signed access token,
// ignoring its expiry. It must only be used for best-effort cleanup such as logout.
func (ti *TokenIssuer) IdentifyAccessToken(token string) (string, error) {
	claims, err := ti.verify(token, ti.accessSecret)
	if err != nil && !errors.Is(err, ErrExpiredToken) {
		return "", err
	}
	if claims == nil || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func (ti *TokenIssuer) sign(userID string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id required")
	}

	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

// verify returns the parsed claims alongside ErrExpiredToken so callers may still
// identify the subject of an expired but authentic token.
func (ti *TokenIssuer) verify(tokenStr string, secret []byte) (*Claims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc,
		methods,
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvalidToken
		}
		// Expiry may be reported before the signature is checked.
		signed := &Claims{}
		if _, serr := jwt.ParseWithClaims(tokenStr, signed, keyFunc, methods, jwt.WithoutClaimsValidation()); serr != nil || signed.UserID == "" {
			return nil, ErrInvalidToken
		}
		return signed, ErrExpiredToken
	}

	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

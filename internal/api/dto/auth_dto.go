package dto

import "github.com/spec-kit/access-control/internal/domain"

// LoginRequest payload for login. Identifier matches a username or an email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         domain.PublicUser `json:"user"`
}

// RefreshRequest payload for POST /auth/refresh-token.
type RefreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Value returns whichever of the accepted fields was sent.
func (r RefreshRequest) Value() string {
	if r.Token != "" {
		return r.Token
	}
	return r.RefreshToken
}

// TokenPairResponse is returned on successful refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest payload for logout. The body is optional.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RenewTTLRequest payload for PUT /auth/token-ttl.
type RenewTTLRequest struct {
	UserID string `json:"userId"`
}

// TokenTTLResponse describes the session countdown.
// ExpTime is the wall-clock expiry as HH:MM:SS; TokenExpTime is the signed
// token expiry, which renewals do not move.
type TokenTTLResponse struct {
	Message           string `json:"message,omitempty"`
	TimeToLifeSeconds int64  `json:"timeToLifeSeconds"`
	ExpTime           string `json:"expTime"`
	TokenExpTime      string `json:"tokenExpTime,omitempty"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

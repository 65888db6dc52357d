package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/events"
	"github.com/spec-kit/access-control/internal/observability"
	"github.com/spec-kit/access-control/internal/repository"
	"github.com/spec-kit/access-control/internal/session"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens domain.TokenPair
	User   domain.PublicUser
}

// AuthService coordinates login, refresh, session TTL and logout flows.
type AuthService struct {
	users      repository.UserRepository
	sessions   session.Cache
	tokens     *auth.TokenIssuer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Sessions   session.Cache
	Tokens     *auth.TokenIssuer
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.Users,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// SessionTTL is the countdown applied when a session is primed or renewed.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.AccessTTL()
}

// Login authenticates by username or email and opens a session.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.NewValidationError("identifier and password required", nil)
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.loginFailed(ctx, identifier, observability.OutcomeNotRegistered)
			return nil, apperrors.NewNotRegistered()
		}
		s.metrics.RecordLogin(observability.OutcomeError)
		return nil, apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.loginFailed(ctx, identifier, observability.OutcomeBadCredential)
		return nil, apperrors.NewBadCredential()
	}
	if !user.Active {
		s.loginFailed(ctx, identifier, observability.OutcomeInactive)
		return nil, apperrors.NewForbidden("Usuario desactivado")
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		s.metrics.RecordLogin(observability.OutcomeError)
		return nil, err
	}

	s.metrics.RecordLogin(observability.OutcomeSuccess)
	s.publish(ctx, events.New(events.EventLoginSucceeded, user.ID,
		events.SessionPayload{ExpiresAt: pair.AccessExpiresAt}))

	return &LoginResult{Tokens: pair, User: user.Public()}, nil
}

// Refresh exchanges a valid refresh token for a new pair. Invalid and expired
// tokens are indistinguishable to the caller.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.TokenPair{}, apperrors.NewValidationError("refreshToken required", nil)
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.metrics.RecordRefresh(observability.OutcomeInvalid)
		return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordRefresh(observability.OutcomeInvalid)
			return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
		}
		s.metrics.RecordRefresh(observability.OutcomeError)
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	if !user.Active {
		s.metrics.RecordRefresh(observability.OutcomeInactive)
		return domain.TokenPair{}, apperrors.NewInvalidRefreshToken()
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		s.metrics.RecordRefresh(observability.OutcomeError)
		return domain.TokenPair{}, err
	}

	s.metrics.RecordRefresh(observability.OutcomeSuccess)
	s.publish(ctx, events.New(events.EventTokenRefreshed, user.ID,
		events.SessionPayload{ExpiresAt: pair.AccessExpiresAt}))
	return pair, nil
}

// RemainingTTL reports the session countdown for userID.
func (s *AuthService) RemainingTTL(ctx context.Context, userID string) (domain.SessionTTL, error) {
	ttl, err := s.sessions.RemainingTTL(ctx, userID)
	if err != nil {
		return domain.SessionTTL{}, s.sessionError(userID, err)
	}
	return ttl, nil
}

// RenewTTL resets the session countdown. The signed token expiry is unchanged.
func (s *AuthService) RenewTTL(ctx context.Context, userID string) (domain.SessionTTL, error) {
	if err := s.sessions.Renew(ctx, userID, s.SessionTTL()); err != nil {
		return domain.SessionTTL{}, s.sessionError(userID, err)
	}

	ttl, err := s.sessions.RemainingTTL(ctx, userID)
	if err != nil {
		return domain.SessionTTL{}, s.sessionError(userID, err)
	}

	s.publish(ctx, events.New(events.EventSessionRenewed, userID,
		events.SessionPayload{ExpiresAt: ttl.ExpiresAt}))
	return ttl, nil
}

// Logout drops the session of whichever user the tokens identify. An expired
// access token still identifies its user. Unidentifiable tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	userID := ""
	if accessToken != "" {
		if id, err := s.tokens.IdentifyAccessToken(accessToken); err == nil {
			userID = id
		}
	}
	if userID == "" && refreshToken != "" {
		if claims, err := s.tokens.VerifyRefreshToken(refreshToken); err == nil {
			userID = claims.UserID
		}
	}
	if userID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, userID); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.New(events.EventLoggedOut, userID, nil))
	return nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	if err := s.sessions.Put(ctx, userID, pair.AccessToken, pair.AccessExpiresAt, s.SessionTTL()); err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	return pair, nil
}

func (s *AuthService) sessionError(userID string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return apperrors.NewNotFound("session", map[string]any{"userId": userID})
	}
	return apperrors.NewInternalError(err)
}

func (s *AuthService) loginFailed(ctx context.Context, identifier, outcome string) {
	s.metrics.RecordLogin(outcome)
	s.publish(ctx, events.New(events.EventLoginFailed, "",
		events.LoginFailedPayload{Identifier: identifier, Reason: outcome}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

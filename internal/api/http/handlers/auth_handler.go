package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/access-control/internal/api/dto"
	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/service"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

const clockLayout = "15:04:05"

// AuthHandler exposes the login, refresh, logout and session TTL endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	logger   *zap.Logger
	location *time.Location
}

// NewAuthHandler constructs handler. Expiry clock times are rendered in loc,
// or in the server's local zone when loc is nil.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger, loc *time.Location) *AuthHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AuthHandler{auth: authService, logger: logger, location: loc}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Identifier, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         result.User,
	})
}

// Refresh handles POST /auth/refresh-token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	pair, err := h.auth.Refresh(c.UserContext(), req.Value())
	if err != nil {
		return err
	}

	return c.JSON(dto.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}

	if err := h.auth.Logout(c.UserContext(), auth.BearerToken(c), req.RefreshToken); err != nil {
		h.logger.Warn("logout cleanup failed", zap.Error(err))
	}
	return c.JSON(dto.MessageResponse{Message: "Sesión cerrada"})
}

// TokenTTL handles GET /auth/token-ttl/:userId.
func (h *AuthHandler) TokenTTL(c *fiber.Ctx) error {
	ttl, err := h.auth.RemainingTTL(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(h.ttlResponse(ttl))
}

// RenewTTL handles PUT /auth/token-ttl.
func (h *AuthHandler) RenewTTL(c *fiber.Ctx) error {
	var req dto.RenewTTLRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("userId required", nil)
	}

	principal, _ := auth.PrincipalFromContext(c)
	if !auth.CanActOn(principal, req.UserID) {
		return apperrors.NewForbidden("cannot act on another user's session")
	}

	ttl, err := h.auth.RenewTTL(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}

	resp := h.ttlResponse(ttl)
	resp.Message = "Tiempo de sesión renovado"
	return c.JSON(resp)
}

func (h *AuthHandler) ttlResponse(ttl domain.SessionTTL) dto.TokenTTLResponse {
	resp := dto.TokenTTLResponse{
		TimeToLifeSeconds: int64(ttl.Remaining / time.Second),
		ExpTime:           ttl.ExpiresAt.In(h.location).Format(clockLayout),
	}
	if !ttl.TokenExpiresAt.IsZero() {
		resp.TokenExpTime = ttl.TokenExpiresAt.In(h.location).Format(clockLayout)
	}
	return resp
}

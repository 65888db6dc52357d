package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/repository"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	UserID string
	User   *domain.User
}

// IsAdmin reports whether the caller holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.User != nil && p.User.Role == domain.RoleAdmin
}

// AuthMiddleware validates bearer access tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenIssuer
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenIssuer, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	token, ok := parseBearer(authHeader)
	if !ok {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return apperrors.NewUnauthorized("token expired")
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Active {
		return apperrors.NewForbidden("Usuario desactivado")
	}

	c.Locals(principalKey, &Principal{UserID: user.ID, User: user})
	return c.Next()
}

// BearerToken returns the bearer token of the request, if any, without validating it.
func BearerToken(c *fiber.Ctx) string {
	token, _ := parseBearer(c.Get(fiber.HeaderAuthorization))
	return token
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func parseBearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

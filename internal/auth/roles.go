package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-control/internal/domain"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.User.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireSelfOrAdmin ensures the path parameter names the caller, unless the
// caller is an admin.
func RequireSelfOrAdmin(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !CanActOn(principal, c.Params(param)) {
			return apperrors.NewForbidden("cannot act on another user's session")
		}
		return c.Next()
	}
}

// CanActOn reports whether principal may read or renew userID's session.
func CanActOn(principal *Principal, userID string) bool {
	if principal == nil {
		return false
	}
	return principal.UserID == userID || principal.IsAdmin()
}

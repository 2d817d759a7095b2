package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-service/internal/domain"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// RequireRole ensures the caller holds one of the allowed roles. ADMIN passes
// every check.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 || actor.HasRole(allowed...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// ParseRoles converts role names, ignoring unknown values.
func ParseRoles(names []string) []domain.Role {
	known := map[domain.Role]bool{
		domain.RoleServiceStaff: true,
		domain.RoleTechnician:   true,
		domain.RoleEVMStaff:     true,
		domain.RoleAdmin:        true,
	}
	var roles []domain.Role
	for _, n := range names {
		if r := domain.Role(n); known[r] {
			roles = append(roles, r)
		}
	}
	return roles
}

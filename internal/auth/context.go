package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocktech/marketplace-service/internal/avadmin"
)

// Identity headers are populated by the API gateway in front of this
// service; there is no session handling here.
const (
	HeaderAccountID = "X-Account-Id"
	HeaderUserID    = "X-User-Id"
)

func GetAccountID(c *fiber.Ctx) string {
	return c.Get(HeaderAccountID)
}

func GetUserID(c *fiber.Ctx) string {
	return c.Get(HeaderUserID)
}

// RequireModuleAccess denies requests whose account has no access to the
// module. The gateway fails closed, so an unreachable account service also
// reads as denial.
func RequireModuleAccess(gateway *avadmin.Gateway, module string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID := GetAccountID(c)
		if accountID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing account context",
			})
		}

		perm := gateway.CheckModulePermission(c.Context(), accountID, module)
		if !perm.HasAccess {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":  "module access denied",
				"reason": perm.Reason,
			})
		}

		return c.Next()
	}
}

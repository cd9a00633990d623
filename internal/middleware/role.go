package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireRole gates a route to users carrying at least one of the given
// roles. Fine-grained permission catalogs live in an external authorization
// service; role gating is all the core needs.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFromCtx(c)
		if claims == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: no claims present",
			})
		}

		for _, role := range roles {
			if claims.HasRole(role) {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Access denied: insufficient role",
		})
	}
}

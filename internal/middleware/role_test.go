package middleware

import (
	"net/http/httptest"
	"testing"

	"go-edu/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

func roleTestApp(claims *utils.UserClaims, roles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/guarded",
		func(c *fiber.Ctx) error {
			if claims != nil {
				c.Locals(utils.UserClaimsKey, claims)
			}
			return c.Next()
		},
		RequireRole(roles...),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) },
	)
	return app
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *utils.UserClaims
		roles  []string
		want   int
	}{
		{"matching role", &utils.UserClaims{UserID: "u1", Roles: []string{"regionadmin"}}, []string{"superadmin", "regionadmin"}, fiber.StatusOK},
		{"missing role", &utils.UserClaims{UserID: "u1", Roles: []string{"teacher"}}, []string{"superadmin"}, fiber.StatusForbidden},
		{"no claims", nil, []string{"superadmin"}, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := roleTestApp(tt.claims, tt.roles...)
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

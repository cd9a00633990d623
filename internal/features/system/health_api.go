package system

import (
	"go-edu/internal/common/api"
	"go-edu/internal/database"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	Mongodb *database.MongodbDB
}

func NewHealthApi(mongodb *database.MongodbDB) api.Route {
	return &HealthApi{Mongodb: mongodb}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := h.Mongodb.Client.Ping(c.UserContext(), nil); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

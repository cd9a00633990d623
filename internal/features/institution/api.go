package institution

import (
	"go-edu/internal/config"
	"go-edu/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type HierarchyApi struct {
	controller *HierarchyController
	config     *config.Config
}

func NewHierarchyApi(controller *HierarchyController, config *config.Config) *HierarchyApi {
	return &HierarchyApi{
		controller: controller,
		config:     config,
	}
}

func (h *HierarchyApi) Setup(app *fiber.App) {
	institutions := app.Group("/api/institutions", middleware.AuthMiddleware(h.config.SkipAuth))

	institutions.Get("/hierarchy", h.controller.GetHierarchy)
	institutions.Get("/validate", middleware.RequireRole("superadmin", "regionadmin"), h.controller.Validate)
	institutions.Get("/statistics", h.controller.Statistics)
	institutions.Get("/level/:level", h.controller.GetByLevel)
	institutions.Get("/:id/subtree", h.controller.GetSubTree)
	institutions.Get("/:id/path", h.controller.GetPath)
	institutions.Get("/:id", h.controller.GetInstitution)

	institutions.Post("/", middleware.RequireRole("superadmin", "regionadmin"), h.controller.CreateInstitution)
	institutions.Post("/:id/move", middleware.RequireRole("superadmin", "regionadmin"), h.controller.Move)
	institutions.Delete("/:id", middleware.RequireRole("superadmin"), h.controller.Deactivate)
}

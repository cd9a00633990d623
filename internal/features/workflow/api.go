package workflow

import (
	"go-edu/internal/config"
	"go-edu/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WorkflowApi struct {
	Controller *WorkflowController
	Cfg        *config.Config
}

func NewWorkflowApi(controller *WorkflowController, cfg *config.Config) *WorkflowApi {
	return &WorkflowApi{Controller: controller, Cfg: cfg}
}

func (a *WorkflowApi) Setup(app *fiber.App) {
	grp := app.Group("/api/workflows", middleware.AuthMiddleware(a.Cfg.SkipAuth))

	grp.Get("/", a.Controller.ListDefinitions)
	grp.Get("/:id", a.Controller.GetDefinition)

	admin := middleware.RequireRole("superadmin", "regionadmin")
	grp.Post("/", admin, a.Controller.CreateDefinition)
	grp.Post("/:id/supersede", admin, a.Controller.Supersede)
}

package sync

import (
	"go-edu/internal/config"
	"go-edu/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	Controller *SyncController
	Cfg        *config.Config
}

func NewSyncApi(controller *SyncController, cfg *config.Config) *SyncApi {
	return &SyncApi{Controller: controller, Cfg: cfg}
}

func (a *SyncApi) Setup(app *fiber.App) {
	grp := app.Group("/api/sync",
		middleware.AuthMiddleware(a.Cfg.SkipAuth),
		middleware.RequireRole("superadmin"),
	)

	grp.Post("/utis", a.Controller.RunImport)
	grp.Get("/logs", a.Controller.ListLogs)
}

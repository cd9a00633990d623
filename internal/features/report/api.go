package report

import (
	"go-edu/internal/config"
	"go-edu/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	Controller *ReportController
	Cfg        *config.Config
}

func NewReportApi(controller *ReportController, cfg *config.Config) *ReportApi {
	return &ReportApi{Controller: controller, Cfg: cfg}
}

func (a *ReportApi) Setup(app *fiber.App) {
	grp := app.Group("/api/reports",
		middleware.AuthMiddleware(a.Cfg.SkipAuth),
		middleware.RequireRole("superadmin", "regionadmin", "sektoradmin"),
	)

	grp.Get("/hierarchy", a.Controller.ExportHierarchy)
	grp.Get("/approvals", a.Controller.ExportApprovals)
}

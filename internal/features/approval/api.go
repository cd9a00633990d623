package approval

import (
	"go-edu/internal/config"
	"go-edu/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ApprovalApi struct {
	Controller *ApprovalController
	Cfg        *config.Config
}

func NewApprovalApi(controller *ApprovalController, cfg *config.Config) *ApprovalApi {
	return &ApprovalApi{Controller: controller, Cfg: cfg}
}

func (a *ApprovalApi) Setup(app *fiber.App) {
	grp := app.Group("/api/approvals", middleware.AuthMiddleware(a.Cfg.SkipAuth))

	// Static segments before the :id wildcard.
	grp.Get("/pending", a.Controller.ListPending)
	grp.Get("/mine", a.Controller.ListMine)
	grp.Get("/analytics", middleware.RequireRole("superadmin", "regionadmin"), a.Controller.Analytics)
	grp.Post("/bulk-decide", a.Controller.BulkDecide)

	grp.Post("/", a.Controller.Submit)
	grp.Get("/", middleware.RequireRole("superadmin", "regionadmin"), a.Controller.ListRequests)
	grp.Get("/:id", a.Controller.GetRequest)
	grp.Post("/:id/decide", a.Controller.Decide)
	grp.Post("/:id/delegate", a.Controller.Delegate)
	grp.Post("/:id/resubmit", a.Controller.Resubmit)
}

package sync

import (
	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service SyncService
}

func NewSyncController(service SyncService) *SyncController {
	return &SyncController{Service: service}
}

// RunImport godoc
// @Summary Import institutions from the legacy UTIS database
// @Description Upserts by UTIS code; parents are imported before children
// @Tags sync
// @Produce json
// @Success 200 {object} SyncLog
// @Router /api/sync/utis [post]
func (c *SyncController) RunImport(ctx *fiber.Ctx) error {
	log, err := c.Service.RunImport(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(log)
}

// ListLogs godoc
// @Summary List past import runs
// @Tags sync
// @Produce json
// @Param limit query int false "Max runs to return"
// @Success 200 {array} SyncLog
// @Router /api/sync/logs [get]
func (c *SyncController) ListLogs(ctx *fiber.Ctx) error {
	logs, err := c.Service.ListLogs(ctx.UserContext(), int64(ctx.QueryInt("limit", 20)))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": logs})
}

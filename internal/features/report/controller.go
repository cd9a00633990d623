package report

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportController struct {
	Service ReportService
}

func NewReportController(service ReportService) *ReportController {
	return &ReportController{Service: service}
}

// ExportHierarchy godoc
// @Summary Export the institution tree as an Excel workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param include_inactive query bool false "Include deactivated institutions"
// @Success 200 {file} binary
// @Router /api/reports/hierarchy [get]
func (c *ReportController) ExportHierarchy(ctx *fiber.Ctx) error {
	data, filename, err := c.Service.ExportHierarchy(ctx.UserContext(), ctx.QueryBool("include_inactive", false))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

// ExportApprovals godoc
// @Summary Export approval requests with a summary sheet
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param workflow_type query string false "Workflow type"
// @Param status query string false "Current status"
// @Success 200 {file} binary
// @Router /api/reports/approvals [get]
func (c *ReportController) ExportApprovals(ctx *fiber.Ctx) error {
	filters := map[string]interface{}{}
	if v := ctx.Query("workflow_type"); v != "" {
		filters["workflow_type"] = v
	}
	if v := ctx.Query("status"); v != "" {
		filters["current_status"] = v
	}

	data, filename, err := c.Service.ExportApprovals(ctx.UserContext(), filters)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

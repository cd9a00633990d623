package approval

import (
	"errors"

	"go-edu/internal/features/institution"
	"go-edu/internal/features/workflow"

	"github.com/gofiber/fiber/v2"
)

type ApprovalController struct {
	Service ApprovalService
}

func NewApprovalController(service ApprovalService) *ApprovalController {
	return &ApprovalController{Service: service}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, workflow.ErrWorkflowNotFound), errors.Is(err, institution.ErrNodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateActiveRequest), errors.Is(err, ErrAlreadyDecided):
		return fiber.StatusConflict
	case errors.Is(err, ErrUnauthorizedApprover):
		return fiber.StatusForbidden
	case errors.Is(err, ErrDelegationNotAllowed), errors.Is(err, ErrNotReturnable), errors.Is(err, ErrInvalidDecision):
		return fiber.StatusBadRequest
	case errors.Is(err, institution.ErrUnresolvableRole):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// Submit godoc
// @Summary Submit an item for approval
// @Description Routes the item into the active workflow for its type; fails fast when no level-1 approver can be resolved
// @Tags approvals
// @Accept json
// @Produce json
// @Param request body SubmitInput true "Submission"
// @Success 201 {object} ApprovalRequest
// @Failure 409 {object} map[string]string "Duplicate active request"
// @Failure 422 {object} map[string]string "No approver resolvable"
// @Router /api/approvals [post]
func (c *ApprovalController) Submit(ctx *fiber.Ctx) error {
	var input SubmitInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := c.Service.Submit(ctx.UserContext(), input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(req)
}

// Decide godoc
// @Summary Record a decision on a request
// @Description Action is one of approved, rejected, returned. Each level accepts exactly one decision
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param decision body DecideInput true "Decision"
// @Success 200 {object} ApprovalRequest
// @Failure 403 {object} map[string]string "Not an authorized approver"
// @Failure 409 {object} map[string]string "Already decided"
// @Router /api/approvals/{id}/decide [post]
func (c *ApprovalController) Decide(ctx *fiber.Ctx) error {
	var input DecideInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := c.Service.Decide(ctx.UserContext(), ctx.Params("id"), input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(req)
}

// BulkDecide godoc
// @Summary Apply one decision to many requests
// @Description Items are independent; the response lists which succeeded and which failed
// @Tags approvals
// @Accept json
// @Produce json
// @Param decision body BulkDecideInput true "Bulk decision"
// @Success 200 {object} BulkResult
// @Router /api/approvals/bulk-decide [post]
func (c *ApprovalController) BulkDecide(ctx *fiber.Ctx) error {
	var input BulkDecideInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := c.Service.BulkDecide(ctx.UserContext(), input)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(result)
}

// Delegate godoc
// @Summary Delegate the current level's decision to another user
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param delegation body DelegateInput true "Delegation"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Workflow forbids delegation"
// @Router /api/approvals/{id}/delegate [post]
func (c *ApprovalController) Delegate(ctx *fiber.Ctx) error {
	var input DelegateInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Service.Delegate(ctx.UserContext(), ctx.Params("id"), input); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Delegation recorded"})
}

// Resubmit godoc
// @Summary Resubmit a returned request
// @Tags approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} ApprovalRequest
// @Failure 400 {object} map[string]string "Request is not in returned state"
// @Router /api/approvals/{id}/resubmit [post]
func (c *ApprovalController) Resubmit(ctx *fiber.Ctx) error {
	req, err := c.Service.Resubmit(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(req)
}

// GetRequest godoc
// @Summary Get a request with its decision history
// @Tags approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} RequestDetail
// @Router /api/approvals/{id} [get]
func (c *ApprovalController) GetRequest(ctx *fiber.Ctx) error {
	detail, err := c.Service.GetRequest(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(detail)
}

// ListPending godoc
// @Summary List open requests assigned to the caller's institution
// @Tags approvals
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} ApprovalRequest
// @Router /api/approvals/pending [get]
func (c *ApprovalController) ListPending(ctx *fiber.Ctx) error {
	requests, err := c.Service.ListPending(ctx.UserContext(),
		int64(ctx.QueryInt("page", 1)), int64(ctx.QueryInt("limit", 20)))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": requests})
}

// ListMine godoc
// @Summary List the caller's own submissions
// @Tags approvals
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} ApprovalRequest
// @Router /api/approvals/mine [get]
func (c *ApprovalController) ListMine(ctx *fiber.Ctx) error {
	requests, err := c.Service.ListMine(ctx.UserContext(),
		int64(ctx.QueryInt("page", 1)), int64(ctx.QueryInt("limit", 20)))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": requests})
}

// ListRequests godoc
// @Summary List requests with admin filters
// @Tags approvals
// @Produce json
// @Param workflow_type query string false "Workflow type"
// @Param status query string false "Current status"
// @Param institution_id query string false "Submitter institution"
// @Success 200 {array} ApprovalRequest
// @Router /api/approvals [get]
func (c *ApprovalController) ListRequests(ctx *fiber.Ctx) error {
	filters := map[string]interface{}{}
	if v := ctx.Query("workflow_type"); v != "" {
		filters["workflow_type"] = v
	}
	if v := ctx.Query("status"); v != "" {
		filters["current_status"] = v
	}
	if v := ctx.Query("approvable_type"); v != "" {
		filters["approvable_type"] = v
	}
	if v := ctx.Query("institution_id"); v != "" {
		filters["institution_id"] = v
	}

	requests, err := c.Service.ListRequests(ctx.UserContext(), filters,
		int64(ctx.QueryInt("page", 1)), int64(ctx.QueryInt("limit", 20)))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": requests})
}

// Analytics godoc
// @Summary Approval throughput analytics
// @Tags approvals
// @Produce json
// @Success 200 {object} Analytics
// @Router /api/approvals/analytics [get]
func (c *ApprovalController) Analytics(ctx *fiber.Ctx) error {
	analytics, err := c.Service.Analytics(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(analytics)
}

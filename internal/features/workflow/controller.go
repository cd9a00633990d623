package workflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type WorkflowController struct {
	Service WorkflowService
}

func NewWorkflowController(service WorkflowService) *WorkflowController {
	return &WorkflowController{Service: service}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrWorkflowNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrMalformedChain):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateDefinition godoc
// @Summary Create a workflow definition
// @Description Validates chain ordering and the optional submit guard before persisting
// @Tags workflows
// @Accept json
// @Produce json
// @Param definition body WorkflowDefinition true "Definition"
// @Success 201 {object} WorkflowDefinition
// @Failure 400 {object} map[string]string "Malformed chain"
// @Router /api/workflows [post]
func (c *WorkflowController) CreateDefinition(ctx *fiber.Ctx) error {
	var input WorkflowDefinition
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := c.Service.CreateDefinition(ctx.UserContext(), &input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(created)
}

// GetDefinition godoc
// @Summary Get a workflow definition
// @Tags workflows
// @Produce json
// @Param id path string true "Definition ID"
// @Success 200 {object} WorkflowDefinition
// @Failure 404 {object} map[string]string "Not found"
// @Router /api/workflows/{id} [get]
func (c *WorkflowController) GetDefinition(ctx *fiber.Ctx) error {
	def, err := c.Service.GetDefinition(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(def)
}

// ListDefinitions godoc
// @Summary List workflow definitions
// @Tags workflows
// @Produce json
// @Param include_superseded query bool false "Include superseded versions"
// @Success 200 {array} WorkflowDefinition
// @Router /api/workflows [get]
func (c *WorkflowController) ListDefinitions(ctx *fiber.Ctx) error {
	defs, err := c.Service.ListDefinitions(ctx.UserContext(), ctx.QueryBool("include_superseded", false))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": defs})
}

// Supersede godoc
// @Summary Publish a new version of a workflow definition
// @Description The old version is kept for requests already referencing it
// @Tags workflows
// @Accept json
// @Produce json
// @Param id path string true "Definition ID being superseded"
// @Param definition body WorkflowDefinition true "Successor definition"
// @Success 201 {object} WorkflowDefinition
// @Router /api/workflows/{id}/supersede [post]
func (c *WorkflowController) Supersede(ctx *fiber.Ctx) error {
	var input WorkflowDefinition
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := c.Service.Supersede(ctx.UserContext(), ctx.Params("id"), &input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(created)
}

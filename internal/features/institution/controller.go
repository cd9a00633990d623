package institution

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type HierarchyController struct {
	Service HierarchyService
}

func NewHierarchyController(service HierarchyService) *HierarchyController {
	return &HierarchyController{Service: service}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDepthExceeded), IsCycle(err):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUnresolvableRole):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateInstitution godoc
// @Summary Create an institution
// @Description Creates an institution under an optional parent; level is derived from the parent
// @Tags institutions
// @Accept json
// @Produce json
// @Param institution body Institution true "Institution"
// @Success 201 {object} Institution
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/institutions [post]
func (c *HierarchyController) CreateInstitution(ctx *fiber.Ctx) error {
	var input Institution
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	created, err := c.Service.CreateInstitution(ctx.UserContext(), &input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(created)
}

// GetHierarchy godoc
// @Summary Get the institution tree
// @Description Returns root institutions with children materialized up to max_depth
// @Tags institutions
// @Produce json
// @Param max_depth query int false "Materialization depth (default 5, max 10)"
// @Param include_inactive query bool false "Include deactivated institutions"
// @Success 200 {array} TreeNode
// @Failure 400 {object} map[string]string "Depth out of range"
// @Router /api/institutions/hierarchy [get]
func (c *HierarchyController) GetHierarchy(ctx *fiber.Ctx) error {
	maxDepth := ctx.QueryInt("max_depth", MaxTreeDepth)
	includeInactive := ctx.QueryBool("include_inactive", false)

	tree, err := c.Service.GetHierarchy(ctx.UserContext(), maxDepth, includeInactive)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": tree})
}

// GetSubTree godoc
// @Summary Get one institution's subtree
// @Tags institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Param max_depth query int false "Materialization depth"
// @Param include_inactive query bool false "Include deactivated institutions"
// @Success 200 {object} TreeNode
// @Failure 404 {object} map[string]string "Institution not found"
// @Router /api/institutions/{id}/subtree [get]
func (c *HierarchyController) GetSubTree(ctx *fiber.Ctx) error {
	maxDepth := ctx.QueryInt("max_depth", MaxTreeDepth)
	includeInactive := ctx.QueryBool("include_inactive", false)

	node, err := c.Service.GetSubTree(ctx.UserContext(), ctx.Params("id"), maxDepth, includeInactive)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": node})
}

// GetInstitution godoc
// @Summary Get a single institution
// @Tags institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} Institution
// @Failure 404 {object} map[string]string "Institution not found"
// @Router /api/institutions/{id} [get]
func (c *HierarchyController) GetInstitution(ctx *fiber.Ctx) error {
	inst, err := c.Service.GetInstitution(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": inst})
}

// GetPath godoc
// @Summary Get the breadcrumb path for an institution
// @Description Ordered chain from the root down to the institution
// @Tags institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {array} Institution
// @Failure 404 {object} map[string]string "Institution or ancestor missing"
// @Router /api/institutions/{id}/path [get]
func (c *HierarchyController) GetPath(ctx *fiber.Ctx) error {
	path, err := c.Service.GetPath(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": path})
}

// GetByLevel godoc
// @Summary List institutions at a given level
// @Tags institutions
// @Produce json
// @Param level path int true "Level (1..5)"
// @Param include_inactive query bool false "Include deactivated institutions"
// @Success 200 {array} Institution
// @Router /api/institutions/level/{level} [get]
func (c *HierarchyController) GetByLevel(ctx *fiber.Ctx) error {
	level, err := ctx.ParamsInt("level")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid level"})
	}
	includeInactive := ctx.QueryBool("include_inactive", false)

	institutions, err := c.Service.GetByLevel(ctx.UserContext(), level, includeInactive)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": institutions})
}

type moveRequest struct {
	NewParentID *string `json:"new_parent_id"`
}

// Move godoc
// @Summary Move an institution to a new parent
// @Description Re-parents the node and atomically recomputes levels for its whole subtree
// @Tags institutions
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param body body moveRequest true "New parent (null for root)"
// @Success 200 {object} Institution
// @Failure 400 {object} map[string]string "Cycle or depth violation"
// @Router /api/institutions/{id}/move [post]
func (c *HierarchyController) Move(ctx *fiber.Ctx) error {
	var input moveRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	moved, err := c.Service.Move(ctx.UserContext(), ctx.Params("id"), input.NewParentID)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Institution moved successfully", "data": moved})
}

// Validate godoc
// @Summary Run hierarchy integrity checks
// @Description Reports orphans, level mismatches and cycles; never auto-corrects
// @Tags institutions
// @Produce json
// @Success 200 {object} map[string]interface{} "is_valid flag plus issue list"
// @Router /api/institutions/validate [get]
func (c *HierarchyController) Validate(ctx *fiber.Ctx) error {
	issues, err := c.Service.Validate(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{
		"is_valid": len(issues) == 0,
		"issues":   issues,
	})
}

// Statistics godoc
// @Summary Hierarchy statistics
// @Tags institutions
// @Produce json
// @Success 200 {object} HierarchyStats
// @Router /api/institutions/statistics [get]
func (c *HierarchyController) Statistics(ctx *fiber.Ctx) error {
	stats, err := c.Service.Statistics(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"data": stats})
}

// Deactivate godoc
// @Summary Soft-deactivate an institution
// @Tags institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Institution not found"
// @Router /api/institutions/{id} [delete]
func (c *HierarchyController) Deactivate(ctx *fiber.Ctx) error {
	if err := c.Service.Deactivate(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Institution deactivated"})
}

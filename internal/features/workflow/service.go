package workflow

import (
	"context"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/features/audit"
	"go-edu/pkg/utils"
)

type WorkflowService interface {
	CreateDefinition(ctx context.Context, def *WorkflowDefinition) (*WorkflowDefinition, error)
	GetDefinition(ctx context.Context, id string) (*WorkflowDefinition, error)
	GetActiveByType(ctx context.Context, workflowType string) (*WorkflowDefinition, error)
	ListDefinitions(ctx context.Context, includeSuperseded bool) ([]WorkflowDefinition, error)
	// Supersede publishes a new version of a definition. Requests created
	// against the old version keep it; new submissions pick up the
	// successor.
	Supersede(ctx context.Context, id string, successor *WorkflowDefinition) (*WorkflowDefinition, error)
}

type WorkflowServiceImpl struct {
	Repo         WorkflowRepository
	AuditService audit.AuditService
}

func NewWorkflowService(repo WorkflowRepository, auditService audit.AuditService) WorkflowService {
	return &WorkflowServiceImpl{
		Repo:         repo,
		AuditService: auditService,
	}
}

func (s *WorkflowServiceImpl) CreateDefinition(ctx context.Context, def *WorkflowDefinition) (*WorkflowDefinition, error) {
	if err := def.ValidateChain(); err != nil {
		return nil, err
	}
	if err := CompileGuard(def.SubmitGuard); err != nil {
		return nil, err
	}

	def.Status = StatusActive
	if def.Version == 0 {
		def.Version = 1
	}
	if claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims); ok {
		def.CreatedBy = claims.UserID
	}

	if err := s.Repo.Create(ctx, def); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflow_definitions", def.ID.Hex(), map[string]common_models.Change{
		"name":    {Old: nil, New: def.Name},
		"version": {Old: nil, New: def.Version},
	})
	return def, nil
}

func (s *WorkflowServiceImpl) GetDefinition(ctx context.Context, id string) (*WorkflowDefinition, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *WorkflowServiceImpl) GetActiveByType(ctx context.Context, workflowType string) (*WorkflowDefinition, error) {
	return s.Repo.GetActiveByType(ctx, workflowType)
}

func (s *WorkflowServiceImpl) ListDefinitions(ctx context.Context, includeSuperseded bool) ([]WorkflowDefinition, error) {
	return s.Repo.List(ctx, includeSuperseded)
}

func (s *WorkflowServiceImpl) Supersede(ctx context.Context, id string, successor *WorkflowDefinition) (*WorkflowDefinition, error) {
	current, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	successor.WorkflowType = current.WorkflowType
	successor.Version = current.Version + 1
	created, err := s.CreateDefinition(ctx, successor)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.MarkSuperseded(ctx, current.ID, created.ID); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflow_definitions", current.ID.Hex(), map[string]common_models.Change{
		"status": {Old: StatusActive, New: StatusSuperseded},
	})
	return created, nil
}

package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/features/audit"
	"go-edu/internal/features/institution"
	"go-edu/internal/features/workflow"
	"go-edu/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type SubmitInput struct {
	WorkflowType   string                 `json:"workflow_type"`
	ApprovableType string                 `json:"approvable_type"`
	ApprovableID   string                 `json:"approvable_id"`
	InstitutionID  string                 `json:"institution_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	// Deadline overrides the default seven-day window when set.
	Deadline *time.Time `json:"deadline,omitempty"`
}

type DecideInput struct {
	Action   string `json:"action"`
	Comments string `json:"comments,omitempty"`
}

type BulkDecideInput struct {
	RequestIDs []string `json:"request_ids"`
	Action     string   `json:"action"`
	Comments   string   `json:"comments,omitempty"`
}

type DelegateInput struct {
	ToUserID string `json:"to_user_id"`
	Comments string `json:"comments,omitempty"`
}

// RequestDetail bundles a request with its full decision history.
type RequestDetail struct {
	Request *ApprovalRequest `json:"request"`
	Actions []ApprovalAction `json:"actions"`
}

type ApprovalService interface {
	Submit(ctx context.Context, input SubmitInput) (*ApprovalRequest, error)
	Decide(ctx context.Context, requestID string, input DecideInput) (*ApprovalRequest, error)
	// BulkDecide applies one decision to many requests. Items are
	// independent; a failure on one never rolls back the others.
	BulkDecide(ctx context.Context, input BulkDecideInput) (*BulkResult, error)
	Delegate(ctx context.Context, requestID string, input DelegateInput) error
	Resubmit(ctx context.Context, requestID string) (*ApprovalRequest, error)
	GetRequest(ctx context.Context, requestID string) (*RequestDetail, error)
	// ListPending returns open requests assigned to the caller's
	// institution.
	ListPending(ctx context.Context, page, limit int64) ([]ApprovalRequest, error)
	// ListMine returns the caller's own submissions, any status.
	ListMine(ctx context.Context, page, limit int64) ([]ApprovalRequest, error)
	ListRequests(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]ApprovalRequest, error)
	Analytics(ctx context.Context) (*Analytics, error)
	// SweepAutoApprovals advances every open request whose current level
	// outlived its workflow's auto-approve timeout. Returns how many were
	// advanced; per-request failures are logged and skipped.
	SweepAutoApprovals(ctx context.Context) (int, error)
}

type ApprovalServiceImpl struct {
	Repo         ApprovalRepository
	Workflows    workflow.WorkflowService
	Hierarchy    institution.HierarchyService
	AuditService audit.AuditService
	Authorizer   Authorizer
	Publisher    EventPublisher
	Logger       *zap.Logger

	// now is swappable so timeout behavior is testable.
	now func() time.Time
}

func NewApprovalService(
	repo ApprovalRepository,
	workflows workflow.WorkflowService,
	hierarchy institution.HierarchyService,
	auditService audit.AuditService,
	authorizer Authorizer,
	publisher EventPublisher,
	logger *zap.Logger,
) ApprovalService {
	return &ApprovalServiceImpl{
		Repo:         repo,
		Workflows:    workflows,
		Hierarchy:    hierarchy,
		AuditService: auditService,
		Authorizer:   authorizer,
		Publisher:    publisher,
		Logger:       logger,
		now:          time.Now,
	}
}

func claimsFrom(ctx context.Context) *utils.UserClaims {
	claims, _ := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims)
	return claims
}

func (s *ApprovalServiceImpl) Submit(ctx context.Context, input SubmitInput) (*ApprovalRequest, error) {
	def, err := s.Workflows.GetActiveByType(ctx, input.WorkflowType)
	if err != nil {
		return nil, err
	}

	if err := workflow.EvaluateGuard(def, input.Metadata); err != nil {
		return nil, err
	}

	if existing, err := s.Repo.FindActiveByRef(ctx, input.ApprovableType, input.ApprovableID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: request %s", ErrDuplicateActiveRequest, existing.ID.Hex())
	} else if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	instID, err := primitive.ObjectIDFromHex(input.InstitutionID)
	if err != nil {
		return nil, institution.ErrNodeNotFound
	}

	// Resolving the first level up front makes an unroutable submission
	// fail fast instead of creating a stuck request.
	first := def.FirstLevel()
	approver, err := s.Hierarchy.ResolveRole(ctx, instID, first.Role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadline := now.Add(DefaultDeadline)
	if input.Deadline != nil && input.Deadline.After(now) {
		deadline = *input.Deadline
	}

	submitter := "system"
	if claims := claimsFrom(ctx); claims != nil {
		submitter = claims.UserID
	}

	req := &ApprovalRequest{
		WorkflowID:                   def.ID,
		WorkflowType:                 def.WorkflowType,
		ApprovableType:               input.ApprovableType,
		ApprovableID:                 input.ApprovableID,
		InstitutionID:                instID,
		SubmittedBy:                  submitter,
		SubmittedAt:                  now,
		Deadline:                     deadline,
		CurrentStatus:                StatusPending,
		CurrentLevel:                 first.Level,
		CurrentApproverInstitutionID: &approver.ID,
		LevelEnteredAt:               now,
		Metadata:                     input.Metadata,
	}

	if err := s.Repo.CreateRequest(ctx, req, ApprovalAction{
		Level:      first.Level,
		ActorID:    submitter,
		Action:     ActionSubmitted,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionApproval, "approval_requests", req.ID.Hex(), map[string]common_models.Change{
		"status": {Old: nil, New: StatusPending},
	})
	s.publish(ActionSubmitted, req, submitter)

	s.Logger.Info("approval request submitted",
		zap.String("request_id", req.ID.Hex()),
		zap.String("workflow_type", req.WorkflowType),
		zap.String("approver_institution", approver.Name),
	)
	return req, nil
}

func (s *ApprovalServiceImpl) Decide(ctx context.Context, requestID string, input DecideInput) (*ApprovalRequest, error) {
	req, err := s.Repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsTerminal() {
		return nil, fmt.Errorf("%w: request is %s", ErrAlreadyDecided, req.CurrentStatus)
	}
	if !req.IsOpen() {
		return nil, fmt.Errorf("%w: request is %s", ErrAlreadyDecided, req.CurrentStatus)
	}

	def, err := s.Workflows.GetDefinition(ctx, req.WorkflowID.Hex())
	if err != nil {
		return nil, err
	}
	entry, ok := def.LevelAt(req.CurrentLevel)
	if !ok {
		return nil, fmt.Errorf("request %s sits at level %d which workflow %s does not define",
			req.ID.Hex(), req.CurrentLevel, def.Name)
	}

	claims := claimsFrom(ctx)
	if err := s.Authorizer.CanDecide(ctx, claims, req, entry); err != nil {
		return nil, err
	}

	actorID := "system"
	if claims != nil {
		actorID = claims.UserID
	}

	var t Transition
	switch input.Action {
	case ActionApproved:
		t, err = s.approveTransition(ctx, def, req)
		if err != nil {
			return nil, err
		}
	case ActionRejected:
		now := s.now()
		t = Transition{
			ToLevel:        req.CurrentLevel,
			ToStatus:       StatusRejected,
			LevelEnteredAt: req.LevelEnteredAt,
			CompletedAt:    &now,
		}
	case ActionReturned:
		t = s.returnTransition(def, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, input.Action)
	}

	t.RequestID = req.ID
	t.FromLevel = req.CurrentLevel
	t.FromStatus = req.CurrentStatus
	t.Action = ApprovalAction{
		Level:      req.CurrentLevel,
		ActorID:    actorID,
		Action:     input.Action,
		Comments:   input.Comments,
		OccurredAt: s.now(),
	}

	updated, err := s.Repo.Transition(ctx, t)
	if err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionApproval, "approval_requests", updated.ID.Hex(), map[string]common_models.Change{
		"status": {Old: req.CurrentStatus, New: updated.CurrentStatus},
		"level":  {Old: req.CurrentLevel, New: updated.CurrentLevel},
	})
	s.publish(input.Action, updated, actorID)

	s.Logger.Info("approval decision recorded",
		zap.String("request_id", updated.ID.Hex()),
		zap.String("action", input.Action),
		zap.Int("level", req.CurrentLevel),
		zap.String("status", updated.CurrentStatus),
	)
	return updated, nil
}

// approveTransition computes where an approval at the current level sends
// the request: the next resolvable chain level, or completion when the
// chain is exhausted or only optional levels remain.
func (s *ApprovalServiceImpl) approveTransition(ctx context.Context, def *workflow.WorkflowDefinition, req *ApprovalRequest) (Transition, error) {
	now := s.now()
	level := req.CurrentLevel

	for {
		next, ok := def.NextLevel(level)
		if !ok {
			break
		}
		if !def.Config.RequireAllLevels && def.RemainingAllOptional(level) {
			break
		}

		approver, err := s.Hierarchy.ResolveRole(ctx, req.InstitutionID, next.Role)
		if err != nil {
			// An optional level with no matching institution is skipped;
			// a required one fails the decision.
			if !next.Required && errors.Is(err, institution.ErrUnresolvableRole) {
				level = next.Level
				continue
			}
			return Transition{}, err
		}

		return Transition{
			ToLevel:               next.Level,
			ToStatus:              StatusInProgress,
			ApproverInstitutionID: &approver.ID,
			LevelEnteredAt:        now,
		}, nil
	}

	return Transition{
		ToLevel:        req.CurrentLevel,
		ToStatus:       StatusApproved,
		LevelEnteredAt: req.LevelEnteredAt,
		CompletedAt:    &now,
	}, nil
}

// returnTransition sends the request back to its submitter. Unless the
// workflow preserves progress on return, the chain restarts from the first
// level on resubmission.
func (s *ApprovalServiceImpl) returnTransition(def *workflow.WorkflowDefinition, req *ApprovalRequest) Transition {
	level := def.FirstLevel().Level
	if def.Config.PreserveOnReturn {
		level = req.CurrentLevel
	}
	return Transition{
		ToLevel:        level,
		ToStatus:       StatusReturned,
		LevelEnteredAt: s.now(),
	}
}

func (s *ApprovalServiceImpl) BulkDecide(ctx context.Context, input BulkDecideInput) (*BulkResult, error) {
	result := &BulkResult{Succeeded: []string{}, Failed: []BulkFailure{}}
	for _, id := range input.RequestIDs {
		if _, err := s.Decide(ctx, id, DecideInput{Action: input.Action, Comments: input.Comments}); err != nil {
			result.Failed = append(result.Failed, BulkFailure{RequestID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result, nil
}

func (s *ApprovalServiceImpl) Delegate(ctx context.Context, requestID string, input DelegateInput) error {
	req, err := s.Repo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.IsOpen() {
		return fmt.Errorf("%w: request is %s", ErrAlreadyDecided, req.CurrentStatus)
	}

	def, err := s.Workflows.GetDefinition(ctx, req.WorkflowID.Hex())
	if err != nil {
		return err
	}
	if !def.Config.AllowDelegation {
		return ErrDelegationNotAllowed
	}
	entry, ok := def.LevelAt(req.CurrentLevel)
	if !ok {
		return fmt.Errorf("request %s sits at level %d which workflow %s does not define",
			req.ID.Hex(), req.CurrentLevel, def.Name)
	}

	claims := claimsFrom(ctx)
	if err := s.Authorizer.CanDecide(ctx, claims, req, entry); err != nil {
		return err
	}

	now := s.now()
	d := Delegation{
		Level:      req.CurrentLevel,
		FromUserID: claims.UserID,
		ToUserID:   input.ToUserID,
		Comments:   input.Comments,
		GrantedAt:  now,
	}
	if err := s.Repo.AddDelegation(ctx, req.ID, req.CurrentLevel, d, ApprovalAction{
		Level:      req.CurrentLevel,
		ActorID:    claims.UserID,
		Action:     ActionDelegated,
		Comments:   input.Comments,
		OccurredAt: now,
	}); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionApproval, "approval_requests", req.ID.Hex(), map[string]common_models.Change{
		"delegated_to": {Old: nil, New: input.ToUserID},
	})
	return nil
}

func (s *ApprovalServiceImpl) Resubmit(ctx context.Context, requestID string) (*ApprovalRequest, error) {
	req, err := s.Repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CurrentStatus != StatusReturned {
		return nil, fmt.Errorf("%w: request is %s", ErrNotReturnable, req.CurrentStatus)
	}

	claims := claimsFrom(ctx)
	if claims == nil || claims.UserID != req.SubmittedBy {
		return nil, fmt.Errorf("%w: only the submitter can resubmit", ErrUnauthorizedApprover)
	}

	def, err := s.Workflows.GetDefinition(ctx, req.WorkflowID.Hex())
	if err != nil {
		return nil, err
	}
	entry, ok := def.LevelAt(req.CurrentLevel)
	if !ok {
		return nil, fmt.Errorf("request %s sits at level %d which workflow %s does not define",
			req.ID.Hex(), req.CurrentLevel, def.Name)
	}

	approver, err := s.Hierarchy.ResolveRole(ctx, req.InstitutionID, entry.Role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadline := now.Add(DefaultDeadline)
	updated, err := s.Repo.Transition(ctx, Transition{
		RequestID:             req.ID,
		FromLevel:             req.CurrentLevel,
		FromStatus:            StatusReturned,
		ToLevel:               entry.Level,
		ToStatus:              StatusPending,
		ApproverInstitutionID: &approver.ID,
		LevelEnteredAt:        now,
		Deadline:              &deadline,
		Action: ApprovalAction{
			Level:      entry.Level,
			ActorID:    claims.UserID,
			Action:     ActionResubmitted,
			OccurredAt: now,
		},
	})
	if err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionApproval, "approval_requests", updated.ID.Hex(), map[string]common_models.Change{
		"status": {Old: StatusReturned, New: StatusPending},
	})
	s.publish(ActionResubmitted, updated, claims.UserID)
	return updated, nil
}

func (s *ApprovalServiceImpl) GetRequest(ctx context.Context, requestID string) (*RequestDetail, error) {
	req, err := s.Repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	actions, err := s.Repo.ListActions(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &RequestDetail{Request: req, Actions: actions}, nil
}

func (s *ApprovalServiceImpl) ListPending(ctx context.Context, page, limit int64) ([]ApprovalRequest, error) {
	claims := claimsFrom(ctx)
	if claims == nil || claims.InstitutionID == "" {
		return []ApprovalRequest{}, nil
	}
	instID, err := primitive.ObjectIDFromHex(claims.InstitutionID)
	if err != nil {
		return nil, institution.ErrNodeNotFound
	}
	return s.Repo.ListRequests(ctx, bson.M{
		"current_approver_institution_id": instID,
		"current_status":                  bson.M{"$in": []string{StatusPending, StatusInProgress}},
	}, page, limit)
}

func (s *ApprovalServiceImpl) ListMine(ctx context.Context, page, limit int64) ([]ApprovalRequest, error) {
	claims := claimsFrom(ctx)
	if claims == nil {
		return []ApprovalRequest{}, nil
	}
	return s.Repo.ListRequests(ctx, bson.M{"submitted_by": claims.UserID}, page, limit)
}

func (s *ApprovalServiceImpl) ListRequests(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]ApprovalRequest, error) {
	query := bson.M{}
	for key, value := range filters {
		switch key {
		case "workflow_type", "current_status", "approvable_type", "submitted_by":
			query[key] = value
		case "institution_id":
			if oid, err := primitive.ObjectIDFromHex(fmt.Sprint(value)); err == nil {
				query["institution_id"] = oid
			}
		}
	}
	return s.Repo.ListRequests(ctx, query, page, limit)
}

func (s *ApprovalServiceImpl) Analytics(ctx context.Context) (*Analytics, error) {
	return s.Repo.Analytics(ctx, s.now())
}

func (s *ApprovalServiceImpl) SweepAutoApprovals(ctx context.Context) (int, error) {
	now := s.now()
	open, err := s.Repo.ListOpenEnteredBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	defs := map[string]*workflow.WorkflowDefinition{}
	swept := 0
	for i := range open {
		req := &open[i]

		def, ok := defs[req.WorkflowID.Hex()]
		if !ok {
			def, err = s.Workflows.GetDefinition(ctx, req.WorkflowID.Hex())
			if err != nil {
				s.Logger.Warn("sweep: workflow definition missing",
					zap.String("request_id", req.ID.Hex()),
					zap.Error(err))
				continue
			}
			defs[req.WorkflowID.Hex()] = def
		}

		timeout, enabled := def.Config.AutoApproveDuration()
		if !enabled || now.Sub(req.LevelEnteredAt) < timeout {
			continue
		}

		t, err := s.approveTransition(ctx, def, req)
		if err != nil {
			s.Logger.Warn("sweep: cannot advance request",
				zap.String("request_id", req.ID.Hex()),
				zap.Error(err))
			continue
		}
		t.RequestID = req.ID
		t.FromLevel = req.CurrentLevel
		t.FromStatus = req.CurrentStatus
		t.Action = ApprovalAction{
			Level:      req.CurrentLevel,
			ActorID:    "system",
			Action:     ActionAutoApproved,
			Comments:   fmt.Sprintf("auto-approved after %s at level %d", timeout, req.CurrentLevel),
			OccurredAt: now,
		}

		updated, err := s.Repo.Transition(ctx, t)
		if err != nil {
			// A concurrent human decision beat the sweeper; nothing to do.
			if errors.Is(err, ErrAlreadyDecided) {
				continue
			}
			s.Logger.Warn("sweep: transition failed",
				zap.String("request_id", req.ID.Hex()),
				zap.Error(err))
			continue
		}
		swept++

		_ = s.AuditService.LogChange(ctx, common_models.AuditActionSweep, "approval_requests", updated.ID.Hex(), map[string]common_models.Change{
			"status": {Old: req.CurrentStatus, New: updated.CurrentStatus},
			"level":  {Old: req.CurrentLevel, New: updated.CurrentLevel},
		})
		s.publish(ActionAutoApproved, updated, "system")
	}

	if swept > 0 {
		s.Logger.Info("auto-approve sweep finished", zap.Int("swept", swept), zap.Int("scanned", len(open)))
	}
	return swept, nil
}

func (s *ApprovalServiceImpl) publish(action string, req *ApprovalRequest, actorID string) {
	if s.Publisher == nil {
		return
	}
	instID := ""
	if req.CurrentApproverInstitutionID != nil {
		instID = req.CurrentApproverInstitutionID.Hex()
	}
	s.Publisher.Publish(ApprovalEvent{
		Type:          action,
		RequestID:     req.ID.Hex(),
		WorkflowType:  req.WorkflowType,
		Status:        req.CurrentStatus,
		Level:         req.CurrentLevel,
		InstitutionID: instID,
		ActorID:       actorID,
		OccurredAt:    s.now(),
	})
}

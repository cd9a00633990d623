package approval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/features/institution"
	"go-edu/internal/features/workflow"
	"go-edu/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- mocks -----------------------------------------------------------------

type mockApprovalRepo struct {
	requests map[primitive.ObjectID]*ApprovalRequest
	actions  []ApprovalAction

	// staleRead, when set, is served by the next FindByID call instead of
	// the stored state. Lets tests stage a lost compare-and-set race.
	staleRead *ApprovalRequest

	createCalls int
}

func newMockApprovalRepo() *mockApprovalRepo {
	return &mockApprovalRepo{requests: make(map[primitive.ObjectID]*ApprovalRequest)}
}

func (m *mockApprovalRepo) CreateRequest(ctx context.Context, req *ApprovalRequest, action ApprovalAction) error {
	m.createCalls++
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	stored := *req
	m.requests[req.ID] = &stored
	action.RequestID = req.ID
	m.actions = append(m.actions, action)
	return nil
}

func (m *mockApprovalRepo) FindByID(ctx context.Context, id string) (*ApprovalRequest, error) {
	if m.staleRead != nil {
		stale := *m.staleRead
		m.staleRead = nil
		return &stale, nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	req, ok := m.requests[oid]
	if !ok {
		return nil, ErrRequestNotFound
	}
	snapshot := *req
	return &snapshot, nil
}

func (m *mockApprovalRepo) FindActiveByRef(ctx context.Context, approvableType, approvableID string) (*ApprovalRequest, error) {
	for _, req := range m.requests {
		if req.ApprovableType == approvableType && req.ApprovableID == approvableID && !req.IsTerminal() {
			snapshot := *req
			return &snapshot, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (m *mockApprovalRepo) Transition(ctx context.Context, t Transition) (*ApprovalRequest, error) {
	req, ok := m.requests[t.RequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.CurrentLevel != t.FromLevel || req.CurrentStatus != t.FromStatus {
		return nil, ErrAlreadyDecided
	}
	req.CurrentLevel = t.ToLevel
	req.CurrentStatus = t.ToStatus
	req.CurrentApproverInstitutionID = t.ApproverInstitutionID
	req.LevelEnteredAt = t.LevelEnteredAt
	req.CompletedAt = t.CompletedAt
	if t.Deadline != nil {
		req.Deadline = *t.Deadline
	}
	t.Action.RequestID = t.RequestID
	m.actions = append(m.actions, t.Action)

	snapshot := *req
	return &snapshot, nil
}

func (m *mockApprovalRepo) AddDelegation(ctx context.Context, requestID primitive.ObjectID, fromLevel int, d Delegation, action ApprovalAction) error {
	req, ok := m.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if req.CurrentLevel != fromLevel || !req.IsOpen() {
		return ErrAlreadyDecided
	}
	req.Delegations = append(req.Delegations, d)
	action.RequestID = requestID
	m.actions = append(m.actions, action)
	return nil
}

func (m *mockApprovalRepo) ListRequests(ctx context.Context, filter bson.M, page, limit int64) ([]ApprovalRequest, error) {
	var out []ApprovalRequest
	for _, req := range m.requests {
		out = append(out, *req)
	}
	return out, nil
}

func (m *mockApprovalRepo) ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error) {
	var out []ApprovalRequest
	for _, req := range m.requests {
		if req.IsOpen() && req.LevelEnteredAt.Before(cutoff) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *mockApprovalRepo) ListActions(ctx context.Context, requestID primitive.ObjectID) ([]ApprovalAction, error) {
	var out []ApprovalAction
	for _, action := range m.actions {
		if action.RequestID == requestID {
			out = append(out, action)
		}
	}
	return out, nil
}

func (m *mockApprovalRepo) Analytics(ctx context.Context, now time.Time) (*Analytics, error) {
	return &Analytics{}, nil
}

type mockWorkflowService struct {
	defs map[string]*workflow.WorkflowDefinition
}

func (m *mockWorkflowService) CreateDefinition(ctx context.Context, def *workflow.WorkflowDefinition) (*workflow.WorkflowDefinition, error) {
	return def, nil
}

func (m *mockWorkflowService) GetDefinition(ctx context.Context, id string) (*workflow.WorkflowDefinition, error) {
	for _, def := range m.defs {
		if def.ID.Hex() == id {
			return def, nil
		}
	}
	return nil, workflow.ErrWorkflowNotFound
}

func (m *mockWorkflowService) GetActiveByType(ctx context.Context, workflowType string) (*workflow.WorkflowDefinition, error) {
	def, ok := m.defs[workflowType]
	if !ok {
		return nil, workflow.ErrWorkflowNotFound
	}
	return def, nil
}

func (m *mockWorkflowService) ListDefinitions(ctx context.Context, includeSuperseded bool) ([]workflow.WorkflowDefinition, error) {
	return nil, nil
}

func (m *mockWorkflowService) Supersede(ctx context.Context, id string, successor *workflow.WorkflowDefinition) (*workflow.WorkflowDefinition, error) {
	return nil, nil
}

// mockHierarchy resolves roles against a fixed role->institution table.
type mockHierarchy struct {
	roleOwners map[string]*institution.Institution
}

func (m *mockHierarchy) ResolveRole(ctx context.Context, institutionID primitive.ObjectID, role string) (*institution.Institution, error) {
	inst, ok := m.roleOwners[role]
	if !ok {
		return nil, fmt.Errorf("%w: role %q", institution.ErrUnresolvableRole, role)
	}
	return inst, nil
}

func (m *mockHierarchy) CreateInstitution(ctx context.Context, inst *institution.Institution) (*institution.Institution, error) {
	return nil, nil
}
func (m *mockHierarchy) GetInstitution(ctx context.Context, id string) (*institution.Institution, error) {
	return nil, nil
}
func (m *mockHierarchy) GetHierarchy(ctx context.Context, maxDepth int, includeInactive bool) ([]*institution.TreeNode, error) {
	return nil, nil
}
func (m *mockHierarchy) GetSubTree(ctx context.Context, id string, maxDepth int, includeInactive bool) (*institution.TreeNode, error) {
	return nil, nil
}
func (m *mockHierarchy) GetPath(ctx context.Context, id string) ([]institution.Institution, error) {
	return nil, nil
}
func (m *mockHierarchy) GetByLevel(ctx context.Context, level int, includeInactive bool) ([]institution.Institution, error) {
	return nil, nil
}
func (m *mockHierarchy) Move(ctx context.Context, id string, newParentID *string) (*institution.Institution, error) {
	return nil, nil
}
func (m *mockHierarchy) Validate(ctx context.Context) ([]institution.Issue, error) { return nil, nil }
func (m *mockHierarchy) Statistics(ctx context.Context) (*institution.HierarchyStats, error) {
	return nil, nil
}
func (m *mockHierarchy) Deactivate(ctx context.Context, id string) error { return nil }

type mockAuditService struct{}

func (mockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}
func (mockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

// --- fixtures --------------------------------------------------------------

type fixture struct {
	svc       *ApprovalServiceImpl
	repo      *mockApprovalRepo
	def       *workflow.WorkflowDefinition
	school    *institution.Institution
	sector    *institution.Institution
	region    *institution.Institution
	submitCtx context.Context
}

func newFixture(t *testing.T, cfg workflow.WorkflowConfig) *fixture {
	t.Helper()

	school := &institution.Institution{ID: primitive.NewObjectID(), Name: "School", Level: 4, IsActive: true}
	sector := &institution.Institution{ID: primitive.NewObjectID(), Name: "Sector", Level: 3, IsActive: true}
	region := &institution.Institution{ID: primitive.NewObjectID(), Name: "Region", Level: 2, IsActive: true}

	def := &workflow.WorkflowDefinition{
		ID:           primitive.NewObjectID(),
		Name:         "Survey Response Approval",
		WorkflowType: "survey_response",
		Status:       workflow.StatusActive,
		Version:      1,
		Chain: []workflow.ChainLevel{
			{Level: 1, Role: "schooladmin", Required: true},
			{Level: 2, Role: "sektoradmin", Required: true},
			{Level: 3, Role: "regionadmin", Required: false},
		},
		Config: cfg,
	}

	repo := newMockApprovalRepo()
	svc := &ApprovalServiceImpl{
		Repo:      repo,
		Workflows: &mockWorkflowService{defs: map[string]*workflow.WorkflowDefinition{"survey_response": def}},
		Hierarchy: &mockHierarchy{roleOwners: map[string]*institution.Institution{
			"schooladmin": school,
			"sektoradmin": sector,
			"regionadmin": region,
		}},
		AuditService: mockAuditService{},
		Authorizer:   NewHierarchyAuthorizer(),
		Publisher:    NoopPublisher{},
		Logger:       zap.NewNop(),
		now:          time.Now,
	}

	return &fixture{
		svc:       svc,
		repo:      repo,
		def:       def,
		school:    school,
		sector:    sector,
		region:    region,
		submitCtx: ctxWithClaims("teacher-1", "teacher", school.ID),
	}
}

func ctxWithClaims(userID, role string, institutionID primitive.ObjectID) context.Context {
	return context.WithValue(context.Background(), utils.UserClaimsKey, &utils.UserClaims{
		UserID:        userID,
		Roles:         []string{role},
		InstitutionID: institutionID.Hex(),
	})
}

func (f *fixture) submit(t *testing.T) *ApprovalRequest {
	t.Helper()
	req, err := f.svc.Submit(f.submitCtx, SubmitInput{
		WorkflowType:   "survey_response",
		ApprovableType: "survey_response",
		ApprovableID:   "42",
		InstitutionID:  f.school.ID.Hex(),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return req
}

// --- tests -----------------------------------------------------------------

func TestSubmitRoutesToFirstLevel(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	req := f.submit(t)

	if req.CurrentStatus != StatusPending {
		t.Errorf("status = %q, want pending", req.CurrentStatus)
	}
	if req.CurrentLevel != 1 {
		t.Errorf("level = %d, want 1", req.CurrentLevel)
	}
	if req.CurrentApproverInstitutionID == nil || *req.CurrentApproverInstitutionID != f.school.ID {
		t.Errorf("approver institution = %v, want the school", req.CurrentApproverInstitutionID)
	}
	if req.Deadline.Sub(req.SubmittedAt) != DefaultDeadline {
		t.Errorf("deadline window = %s, want %s", req.Deadline.Sub(req.SubmittedAt), DefaultDeadline)
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	f.submit(t)

	_, err := f.svc.Submit(f.submitCtx, SubmitInput{
		WorkflowType:   "survey_response",
		ApprovableType: "survey_response",
		ApprovableID:   "42",
		InstitutionID:  f.school.ID.Hex(),
	})
	if !errors.Is(err, ErrDuplicateActiveRequest) {
		t.Errorf("Submit() duplicate error = %v, want ErrDuplicateActiveRequest", err)
	}
}

func TestSubmitFailsFastWhenUnroutable(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	// Remove the level-1 owner so routing cannot resolve.
	f.svc.Hierarchy.(*mockHierarchy).roleOwners = map[string]*institution.Institution{}

	_, err := f.svc.Submit(f.submitCtx, SubmitInput{
		WorkflowType:   "survey_response",
		ApprovableType: "survey_response",
		ApprovableID:   "42",
		InstitutionID:  f.school.ID.Hex(),
	})
	if !errors.Is(err, institution.ErrUnresolvableRole) {
		t.Fatalf("Submit() error = %v, want ErrUnresolvableRole", err)
	}
	if f.repo.createCalls != 0 {
		t.Errorf("a request was persisted despite the routing failure")
	}
}

func TestSubmitGuardBlocks(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	f.def.SubmitGuard = `allow := metadata.priority != "low"`

	_, err := f.svc.Submit(f.submitCtx, SubmitInput{
		WorkflowType:   "survey_response",
		ApprovableType: "survey_response",
		ApprovableID:   "42",
		InstitutionID:  f.school.ID.Hex(),
		Metadata:       map[string]interface{}{"priority": "low"},
	})
	if err == nil {
		t.Fatal("Submit() passed a guard that should block")
	}
	if f.repo.createCalls != 0 {
		t.Errorf("a request was persisted despite the guard")
	}
}

func TestFullChainApproval(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true})
	req := f.submit(t)

	// Level 1: school admin approves, request moves to the sector.
	updated, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionApproved})
	if err != nil {
		t.Fatalf("level-1 Decide() error = %v", err)
	}
	if updated.CurrentStatus != StatusInProgress || updated.CurrentLevel != 2 {
		t.Fatalf("after level 1: status=%s level=%d, want in_progress/2", updated.CurrentStatus, updated.CurrentLevel)
	}
	if *updated.CurrentApproverInstitutionID != f.sector.ID {
		t.Errorf("level-2 approver institution is not the sector")
	}

	// Level 2: sector admin approves.
	updated, err = f.svc.Decide(ctxWithClaims("sk-1", "sektoradmin", f.sector.ID), req.ID.Hex(), DecideInput{Action: ActionApproved})
	if err != nil {
		t.Fatalf("level-2 Decide() error = %v", err)
	}
	if updated.CurrentLevel != 3 {
		t.Fatalf("after level 2: level=%d, want 3", updated.CurrentLevel)
	}

	// Level 3: region admin approves, chain exhausted.
	updated, err = f.svc.Decide(ctxWithClaims("ra-1", "regionadmin", f.region.ID), req.ID.Hex(), DecideInput{Action: ActionApproved})
	if err != nil {
		t.Fatalf("level-3 Decide() error = %v", err)
	}
	if updated.CurrentStatus != StatusApproved {
		t.Errorf("final status = %q, want approved", updated.CurrentStatus)
	}
	if updated.CompletedAt == nil {
		t.Error("approved request has no completion time")
	}

	actions, _ := f.repo.ListActions(context.Background(), req.ID)
	if len(actions) != 4 { // submitted + three approvals
		t.Errorf("history has %d actions, want 4", len(actions))
	}
}

func TestEarlyCompletionWhenRemainingOptional(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: false})
	req := f.submit(t)

	if _, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionApproved}); err != nil {
		t.Fatalf("level-1 Decide() error = %v", err)
	}

	// Level 3 is optional, so the level-2 approval finishes the chain.
	updated, err := f.svc.Decide(ctxWithClaims("sk-1", "sektoradmin", f.sector.ID), req.ID.Hex(), DecideInput{Action: ActionApproved})
	if err != nil {
		t.Fatalf("level-2 Decide() error = %v", err)
	}
	if updated.CurrentStatus != StatusApproved {
		t.Errorf("status = %q, want approved after the last required level", updated.CurrentStatus)
	}
}

func TestDecideRejectsWrongApprover(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	req := f.submit(t)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"wrong role", ctxWithClaims("sk-1", "sektoradmin", f.sector.ID)},
		{"right role wrong institution", ctxWithClaims("sa-2", "schooladmin", f.sector.ID)},
		{"no claims", context.Background()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Decide(tt.ctx, req.ID.Hex(), DecideInput{Action: ActionApproved})
			if !errors.Is(err, ErrUnauthorizedApprover) {
				t.Errorf("Decide() error = %v, want ErrUnauthorizedApprover", err)
			}
		})
	}
}

func TestConcurrentDecisionLosesRace(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true})
	req := f.submit(t)
	approverCtx := ctxWithClaims("sa-1", "schooladmin", f.school.ID)

	// First approver wins.
	if _, err := f.svc.Decide(approverCtx, req.ID.Hex(), DecideInput{Action: ActionApproved}); err != nil {
		t.Fatalf("first Decide() error = %v", err)
	}

	// Second approver read the request before the first decision landed;
	// their write must lose the compare-and-set.
	stale := *req
	f.repo.staleRead = &stale
	_, err := f.svc.Decide(approverCtx, req.ID.Hex(), DecideInput{Action: ActionRejected})
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("stale Decide() error = %v, want ErrAlreadyDecided", err)
	}

	// Exactly one decision recorded at level 1.
	actions, _ := f.repo.ListActions(context.Background(), req.ID)
	decisions := 0
	for _, action := range actions {
		if action.Level == 1 && action.Action != ActionSubmitted {
			decisions++
		}
	}
	if decisions != 1 {
		t.Errorf("level 1 has %d decisions, want exactly 1", decisions)
	}
}

func TestDecideOnTerminalRequest(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	req := f.submit(t)

	if _, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionRejected}); err != nil {
		t.Fatalf("Decide() reject error = %v", err)
	}

	_, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionApproved})
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Decide() on rejected request error = %v, want ErrAlreadyDecided", err)
	}
}

func TestReturnResetsToFirstLevel(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true})
	req := f.submit(t)

	// Walk to level 2, then return from there.
	if _, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionApproved}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	updated, err := f.svc.Decide(ctxWithClaims("sk-1", "sektoradmin", f.sector.ID), req.ID.Hex(), DecideInput{Action: ActionReturned, Comments: "missing attachments"})
	if err != nil {
		t.Fatalf("Decide() return error = %v", err)
	}
	if updated.CurrentStatus != StatusReturned {
		t.Fatalf("status = %q, want returned", updated.CurrentStatus)
	}
	if updated.CurrentLevel != 1 {
		t.Errorf("returned request sits at level %d, want 1 (progress reset)", updated.CurrentLevel)
	}

	// Only the submitter may resubmit, and doing so reopens level 1.
	if _, err := f.svc.Resubmit(ctxWithClaims("someone-else", "teacher", f.school.ID), req.ID.Hex()); !errors.Is(err, ErrUnauthorizedApprover) {
		t.Errorf("Resubmit() by a stranger error = %v, want ErrUnauthorizedApprover", err)
	}

	reopened, err := f.svc.Resubmit(f.submitCtx, req.ID.Hex())
	if err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if reopened.CurrentStatus != StatusPending || reopened.CurrentLevel != 1 {
		t.Errorf("resubmitted request: status=%s level=%d, want pending/1", reopened.CurrentStatus, reopened.CurrentLevel)
	}
}

func TestReturnPreservesLevelWhenConfigured(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true, PreserveOnReturn: true})
	req := f.submit(t)

	if _, err := f.svc.Decide(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DecideInput{Action: ActionApproved}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	updated, err := f.svc.Decide(ctxWithClaims("sk-1", "sektoradmin", f.sector.ID), req.ID.Hex(), DecideInput{Action: ActionReturned})
	if err != nil {
		t.Fatalf("Decide() return error = %v", err)
	}
	if updated.CurrentLevel != 2 {
		t.Errorf("preserve_on_return kept level %d, want 2", updated.CurrentLevel)
	}
}

func TestDelegation(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{AllowDelegation: true})
	req := f.submit(t)
	approverCtx := ctxWithClaims("sa-1", "schooladmin", f.school.ID)

	if err := f.svc.Delegate(approverCtx, req.ID.Hex(), DelegateInput{ToUserID: "deputy-1"}); err != nil {
		t.Fatalf("Delegate() error = %v", err)
	}

	// The delegate may now decide even without the role.
	delegateCtx := ctxWithClaims("deputy-1", "teacher", f.school.ID)
	updated, err := f.svc.Decide(delegateCtx, req.ID.Hex(), DecideInput{Action: ActionApproved})
	if err != nil {
		t.Fatalf("delegate Decide() error = %v", err)
	}
	if updated.CurrentLevel != 2 {
		t.Errorf("after delegated approval level = %d, want 2", updated.CurrentLevel)
	}
}

func TestDelegationDisallowed(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{AllowDelegation: false})
	req := f.submit(t)

	err := f.svc.Delegate(ctxWithClaims("sa-1", "schooladmin", f.school.ID), req.ID.Hex(), DelegateInput{ToUserID: "deputy-1"})
	if !errors.Is(err, ErrDelegationNotAllowed) {
		t.Errorf("Delegate() error = %v, want ErrDelegationNotAllowed", err)
	}
}

func TestBulkDecidePartialFailure(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true})
	first := f.submit(t)

	second, err := f.svc.Submit(f.submitCtx, SubmitInput{
		WorkflowType:   "survey_response",
		ApprovableType: "survey_response",
		ApprovableID:   "43",
		InstitutionID:  f.school.ID.Hex(),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	approverCtx := ctxWithClaims("sa-1", "schooladmin", f.school.ID)
	missing := primitive.NewObjectID().Hex()
	result, err := f.svc.BulkDecide(approverCtx, BulkDecideInput{
		RequestIDs: []string{first.ID.Hex(), missing, second.ID.Hex()},
		Action:     ActionApproved,
	})
	if err != nil {
		t.Fatalf("BulkDecide() error = %v", err)
	}

	if len(result.Succeeded) != 2 {
		t.Errorf("succeeded = %v, want both real requests", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].RequestID != missing {
		t.Errorf("failed = %v, want only the missing id", result.Failed)
	}

	// The failure did not roll back the others.
	for _, id := range []primitive.ObjectID{first.ID, second.ID} {
		req, _ := f.repo.FindByID(context.Background(), id.Hex())
		if req.CurrentLevel != 2 {
			t.Errorf("request %s level = %d, want 2", id.Hex(), req.CurrentLevel)
		}
	}
}

func TestSweepAutoApprovesStaleLevels(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{RequireAllLevels: true, AutoApproveAfter: "72h"})
	req := f.submit(t)

	base := time.Now()

	// Just under the timeout: nothing happens.
	f.svc.now = func() time.Time { return base.Add(71 * time.Hour) }
	swept, err := f.svc.SweepAutoApprovals(context.Background())
	if err != nil {
		t.Fatalf("SweepAutoApprovals() error = %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept %d requests before the timeout", swept)
	}

	// Past the timeout: the level is auto-approved and the request
	// advances to level 2.
	f.svc.now = func() time.Time { return base.Add(73 * time.Hour) }
	swept, err = f.svc.SweepAutoApprovals(context.Background())
	if err != nil {
		t.Fatalf("SweepAutoApprovals() error = %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	updated, _ := f.repo.FindByID(context.Background(), req.ID.Hex())
	if updated.CurrentLevel != 2 || updated.CurrentStatus != StatusInProgress {
		t.Errorf("after sweep: status=%s level=%d, want in_progress/2", updated.CurrentStatus, updated.CurrentLevel)
	}

	actions, _ := f.repo.ListActions(context.Background(), req.ID)
	foundAuto := false
	for _, action := range actions {
		if action.Action == ActionAutoApproved && action.ActorID == "system" {
			foundAuto = true
		}
	}
	if !foundAuto {
		t.Error("no auto_approved action recorded for the system actor")
	}
}

func TestSweepRespectsDisabledTimeout(t *testing.T) {
	f := newFixture(t, workflow.WorkflowConfig{})
	f.submit(t)

	f.svc.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	swept, err := f.svc.SweepAutoApprovals(context.Background())
	if err != nil {
		t.Fatalf("SweepAutoApprovals() error = %v", err)
	}
	if swept != 0 {
		t.Errorf("swept %d requests for a workflow without a timeout", swept)
	}
}

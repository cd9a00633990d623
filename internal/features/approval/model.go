package approval

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request statuses. Approved and rejected are terminal; a returned request
// goes back to its submitter and may be resubmitted.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusReturned   = "returned"
)

// Action kinds recorded in the approval history.
const (
	ActionSubmitted    = "submitted"
	ActionApproved     = "approved"
	ActionRejected     = "rejected"
	ActionReturned     = "returned"
	ActionDelegated    = "delegated"
	ActionAutoApproved = "auto_approved"
	ActionResubmitted  = "resubmitted"
)

// DefaultDeadline is applied to submissions that do not set one.
const DefaultDeadline = 7 * 24 * time.Hour

// Delegation grants a named user the right to decide at one chain level of
// one request. It does not transfer the role itself.
type Delegation struct {
	Level      int       `bson:"level" json:"level"`
	FromUserID string    `bson:"from_user_id" json:"from_user_id"`
	ToUserID   string    `bson:"to_user_id" json:"to_user_id"`
	Comments   string    `bson:"comments,omitempty" json:"comments,omitempty"`
	GrantedAt  time.Time `bson:"granted_at" json:"granted_at"`
}

// ApprovalRequest is one item travelling through a workflow's chain. The
// current_* fields are the single source of truth for where the request
// stands; the full history lives in approval_actions.
type ApprovalRequest struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkflowID     primitive.ObjectID `bson:"workflow_id" json:"workflow_id"`
	WorkflowType   string             `bson:"workflow_type" json:"workflow_type"`
	ApprovableType string             `bson:"approvable_type" json:"approvable_type"`
	ApprovableID   string             `bson:"approvable_id" json:"approvable_id"`
	// InstitutionID is the submitter's institution; chain roles are
	// resolved against its ancestors.
	InstitutionID primitive.ObjectID `bson:"institution_id" json:"institution_id"`
	SubmittedBy   string             `bson:"submitted_by" json:"submitted_by"`
	SubmittedAt   time.Time          `bson:"submitted_at" json:"submitted_at"`
	Deadline      time.Time          `bson:"deadline" json:"deadline"`

	CurrentStatus string `bson:"current_status" json:"current_status"`
	CurrentLevel  int    `bson:"current_level" json:"current_level"`
	// CurrentApproverInstitutionID is the resolved institution responsible
	// for the current level. Cleared while the request sits with the
	// submitter.
	CurrentApproverInstitutionID *primitive.ObjectID `bson:"current_approver_institution_id,omitempty" json:"current_approver_institution_id,omitempty"`
	// LevelEnteredAt restarts whenever the request enters a level; the
	// auto-approve timeout counts from here.
	LevelEnteredAt time.Time  `bson:"level_entered_at" json:"level_entered_at"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	Delegations []Delegation           `bson:"delegations,omitempty" json:"delegations,omitempty"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether no further decision can change the request.
func (r *ApprovalRequest) IsTerminal() bool {
	return r.CurrentStatus == StatusApproved || r.CurrentStatus == StatusRejected
}

// IsOpen reports whether the request is waiting on an approver.
func (r *ApprovalRequest) IsOpen() bool {
	return r.CurrentStatus == StatusPending || r.CurrentStatus == StatusInProgress
}

// DelegateAt returns the user a decision at the given level was delegated
// to, if any. The most recent delegation for a level wins.
func (r *ApprovalRequest) DelegateAt(level int) (string, bool) {
	for i := len(r.Delegations) - 1; i >= 0; i-- {
		if r.Delegations[i].Level == level {
			return r.Delegations[i].ToUserID, true
		}
	}
	return "", false
}

// ApprovalAction is one append-only history entry for a request.
type ApprovalAction struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID  primitive.ObjectID `bson:"request_id" json:"request_id"`
	Level      int                `bson:"level" json:"level"`
	ActorID    string             `bson:"actor_id" json:"actor_id"`
	Action     string             `bson:"action" json:"action"`
	Comments   string             `bson:"comments,omitempty" json:"comments,omitempty"`
	OccurredAt time.Time          `bson:"occurred_at" json:"occurred_at"`
}

// BulkFailure records why one item of a bulk decision did not go through.
type BulkFailure struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// BulkResult summarizes a bulk decision. Failures never roll back the
// items that succeeded.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// StatusCount is one row of the status breakdown.
type StatusCount struct {
	Status string `bson:"_id" json:"status"`
	Count  int64  `bson:"count" json:"count"`
}

// Analytics aggregates request throughput for dashboards.
type Analytics struct {
	ByStatus           []StatusCount `json:"by_status"`
	Open               int64         `json:"open"`
	Overdue            int64         `json:"overdue"`
	AvgCompletionHours float64       `json:"avg_completion_hours"`
}

package workflow

import (
	"errors"
	"fmt"
	"time"

	"go-edu/internal/features/institution"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrWorkflowNotFound = errors.New("workflow definition not found")
	ErrMalformedChain   = errors.New("malformed approval chain")
)

// Workflow statuses. Definitions referenced by requests are never deleted;
// an administrative update supersedes the old version instead.
const (
	StatusActive     = "active"
	StatusSuperseded = "superseded"
)

// ChainLevel is one step of an approval chain. Role names are resolved
// against the institution hierarchy at run time.
type ChainLevel struct {
	Level    int    `bson:"level" json:"level"`
	Role     string `bson:"role" json:"role"`
	Required bool   `bson:"required" json:"required"`
	Title    string `bson:"title" json:"title"`
}

// WorkflowConfig carries per-definition behavior switches.
type WorkflowConfig struct {
	// AutoApproveAfter is a Go duration string ("72h"); empty disables the
	// auto-approve timeout for this workflow.
	AutoApproveAfter string `bson:"auto_approve_after,omitempty" json:"auto_approve_after,omitempty"`
	RequireAllLevels bool   `bson:"require_all_levels" json:"require_all_levels"`
	AllowDelegation  bool   `bson:"allow_delegation" json:"allow_delegation"`
	// PreserveOnReturn keeps prior-level approvals when a request is
	// returned to the submitter. The zero value resets to level 1, the
	// safer default.
	PreserveOnReturn bool `bson:"preserve_on_return" json:"preserve_on_return"`
}

// AutoApproveDuration parses the configured timeout. The second return is
// false when auto-approval is disabled.
func (c WorkflowConfig) AutoApproveDuration() (time.Duration, bool) {
	if c.AutoApproveAfter == "" {
		return 0, false
	}
	d, err := time.ParseDuration(c.AutoApproveAfter)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// WorkflowDefinition is a named, reusable approval-chain template.
type WorkflowDefinition struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name"`
	WorkflowType string              `bson:"workflow_type" json:"workflow_type"`
	Status       string              `bson:"status" json:"status"`
	Version      int                 `bson:"version" json:"version"`
	Chain        []ChainLevel        `bson:"chain" json:"chain"`
	Config       WorkflowConfig      `bson:"config" json:"config"`
	// SubmitGuard is an optional script evaluated against request metadata
	// at submit time; a failing guard blocks the submission.
	SubmitGuard  string              `bson:"submit_guard,omitempty" json:"submit_guard,omitempty"`
	Description  string              `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy    string              `bson:"created_by" json:"created_by"`
	SupersededBy *primitive.ObjectID `bson:"superseded_by,omitempty" json:"superseded_by,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}

// ValidateChain rejects malformed chains at definition-creation time:
// empty chains, non-increasing or duplicate level numbers, and roles the
// hierarchy resolver does not know.
func (w *WorkflowDefinition) ValidateChain() error {
	if len(w.Chain) == 0 {
		return fmt.Errorf("%w: chain is empty", ErrMalformedChain)
	}
	prev := 0
	for _, entry := range w.Chain {
		if entry.Level <= prev {
			return fmt.Errorf("%w: levels must be strictly increasing, got %d after %d", ErrMalformedChain, entry.Level, prev)
		}
		if _, ok := institution.RoleLevels[entry.Role]; !ok {
			return fmt.Errorf("%w: unknown role %q at level %d", ErrMalformedChain, entry.Role, entry.Level)
		}
		prev = entry.Level
	}
	return nil
}

// FirstLevel returns the chain's initial entry.
func (w *WorkflowDefinition) FirstLevel() ChainLevel {
	return w.Chain[0]
}

// LevelAt returns the chain entry with the given level number.
func (w *WorkflowDefinition) LevelAt(level int) (ChainLevel, bool) {
	for _, entry := range w.Chain {
		if entry.Level == level {
			return entry, true
		}
	}
	return ChainLevel{}, false
}

// NextLevel returns the chain entry following the given level number.
func (w *WorkflowDefinition) NextLevel(after int) (ChainLevel, bool) {
	for _, entry := range w.Chain {
		if entry.Level > after {
			return entry, true
		}
	}
	return ChainLevel{}, false
}

// RemainingAllOptional reports whether every chain entry after the given
// level is optional. Combined with require_all_levels=false this lets an
// approval complete early.
func (w *WorkflowDefinition) RemainingAllOptional(after int) bool {
	for _, entry := range w.Chain {
		if entry.Level > after && entry.Required {
			return false
		}
	}
	return true
}

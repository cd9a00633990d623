package approval

import "time"

// ApprovalEvent is broadcast whenever a request changes state, so approver
// dashboards update without polling.
type ApprovalEvent struct {
	Type          string    `json:"type"`
	RequestID     string    `json:"request_id"`
	WorkflowType  string    `json:"workflow_type"`
	Status        string    `json:"status"`
	Level         int       `json:"level"`
	InstitutionID string    `json:"institution_id,omitempty"`
	ActorID       string    `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher fans an event out to connected listeners. Publishing is
// best-effort; the decision has already committed when it is called.
type EventPublisher interface {
	Publish(event ApprovalEvent)
}

// NoopPublisher drops events. Used in tests and in deployments without the
// websocket hub.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ApprovalEvent) {}

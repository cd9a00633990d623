package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate    AuditAction = "CREATE"
	AuditActionUpdate    AuditAction = "UPDATE"
	AuditActionMove      AuditAction = "MOVE"
	AuditActionDelete    AuditAction = "DELETE"
	AuditActionLogin     AuditAction = "LOGIN"
	AuditActionApproval  AuditAction = "APPROVAL"
	AuditActionSweep     AuditAction = "SWEEP"
	AuditActionSync      AuditAction = "SYNC"
	AuditActionValidate  AuditAction = "VALIDATE"
	AuditActionWorkflow  AuditAction = "WORKFLOW"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`         // The feature/collection name
	RecordID  string             `bson:"record_id" json:"record_id"`   // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`     // User ID who performed the action
	ActorName string             `bson:"-" json:"actor_name,omitempty"`
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// User is the platform account used for authentication and approval routing.
// Full user administration is handled elsewhere; the core only needs role
// membership and institution assignment.
type User struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Username      string              `bson:"username" json:"username"`
	Email         string              `bson:"email" json:"email"`
	PasswordHash  string              `bson:"password_hash" json:"-"`
	Roles         []string            `bson:"roles" json:"roles"`
	InstitutionID *primitive.ObjectID `bson:"institution_id,omitempty" json:"institution_id,omitempty"`
	IsActive      bool                `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

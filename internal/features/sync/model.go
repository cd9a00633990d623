package sync

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncLog records one legacy-import run.
type SyncLog struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Source         string             `bson:"source" json:"source"`
	StartTime      time.Time          `bson:"start_time" json:"start_time"`
	EndTime        time.Time          `bson:"end_time" json:"end_time"`
	Status         string             `bson:"status" json:"status"`
	ProcessedCount int                `bson:"processed_count" json:"processed_count"`
	CreatedCount   int                `bson:"created_count" json:"created_count"`
	UpdatedCount   int                `bson:"updated_count" json:"updated_count"`
	SkippedCount   int                `bson:"skipped_count" json:"skipped_count"`
	Error          string             `bson:"error,omitempty" json:"error,omitempty"`
}

// legacyRow is one institution record as the legacy UTIS schema stores it.
// Parentage comes as the parent's UTIS code, not an object reference.
type legacyRow struct {
	UtisCode       string
	Name           string
	ShortName      string
	TypeKey        string
	ParentUtisCode string
	IsActive       bool
}

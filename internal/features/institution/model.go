package institution

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// MaxTreeDepth is the deepest level an institution may occupy.
	MaxTreeDepth = 5
	// MaxQueryDepth bounds how deep hierarchy materialization may go.
	MaxQueryDepth = 10
)

// Institution types mirror the organizational levels of the platform.
const (
	TypeMinistry = "ministry"
	TypeRegion   = "region"
	TypeSector   = "sector"
	TypeSchool   = "school"
)

// Institution is a single node in the organizational tree.
// Roots have a nil ParentID and level 1; for every other node
// level == parent level + 1.
type Institution struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name      string              `bson:"name" json:"name"`
	ShortName string              `bson:"short_name,omitempty" json:"short_name,omitempty"`
	Type      string              `bson:"type" json:"type"`
	ParentID  *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Level     int                 `bson:"level" json:"level"`
	UtisCode  string              `bson:"utis_code,omitempty" json:"utis_code,omitempty"`
	IsActive  bool                `bson:"is_active" json:"is_active"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// TreeNode is an Institution annotated for lazy UI expansion and
// materialized up to a requested depth.
type TreeNode struct {
	Institution
	HasChildren   bool        `json:"has_children"`
	ChildrenCount int         `json:"children_count"`
	Children      []*TreeNode `json:"children,omitempty"`
}

// IssueKind classifies a structural problem found by Validate.
type IssueKind string

const (
	IssueOrphan        IssueKind = "orphan"
	IssueLevelMismatch IssueKind = "level_mismatch"
	IssueCycle         IssueKind = "cycle"
)

// Issue is one structural inconsistency in the stored tree. Issues are
// reported, never auto-corrected.
type Issue struct {
	Kind   IssueKind          `json:"kind"`
	NodeID primitive.ObjectID `json:"node_id,omitempty"`
	Detail string             `json:"detail"`
}

// HierarchyStats summarises the tree for dashboards.
type HierarchyStats struct {
	TotalNodes   int            `json:"total_nodes"`
	ActiveNodes  int            `json:"active_nodes"`
	RootCount    int            `json:"root_count"`
	CountByLevel map[int]int    `json:"count_by_level"`
	CountByType  map[string]int `json:"count_by_type"`
}

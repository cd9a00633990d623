package institution

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// buildTree returns a well-formed four-level tree:
// ministry -> region -> sector -> schoolA, schoolB
func buildTree() (map[string]*Institution, []Institution) {
	ministry := &Institution{ID: primitive.NewObjectID(), Name: "Ministry", Type: TypeMinistry, Level: 1, IsActive: true}
	region := &Institution{ID: primitive.NewObjectID(), Name: "Region", Type: TypeRegion, ParentID: &ministry.ID, Level: 2, IsActive: true}
	sector := &Institution{ID: primitive.NewObjectID(), Name: "Sector", Type: TypeSector, ParentID: &region.ID, Level: 3, IsActive: true}
	schoolA := &Institution{ID: primitive.NewObjectID(), Name: "School A", Type: TypeSchool, ParentID: &sector.ID, Level: 4, IsActive: true}
	schoolB := &Institution{ID: primitive.NewObjectID(), Name: "School B", Type: TypeSchool, ParentID: &sector.ID, Level: 4, IsActive: true}

	byName := map[string]*Institution{
		"ministry": ministry, "region": region, "sector": sector,
		"schoolA": schoolA, "schoolB": schoolB,
	}
	all := []Institution{*ministry, *region, *sector, *schoolA, *schoolB}
	return byName, all
}

func TestArenaPath(t *testing.T) {
	nodes, all := buildTree()
	arena := NewArena(all)

	path, err := arena.Path(nodes["schoolA"].ID)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}

	want := []string{"Ministry", "Region", "Sector", "School A"}
	if len(path) != len(want) {
		t.Fatalf("Path() returned %d nodes, want %d", len(path), len(want))
	}
	for i, name := range want {
		if path[i].Name != name {
			t.Errorf("path[%d] = %q, want %q", i, path[i].Name, name)
		}
	}
}

func TestArenaPathMissingNode(t *testing.T) {
	_, all := buildTree()
	arena := NewArena(all)

	if _, err := arena.Path(primitive.NewObjectID()); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Path() error = %v, want ErrNodeNotFound", err)
	}
}

func TestArenaIsDescendant(t *testing.T) {
	nodes, all := buildTree()
	arena := NewArena(all)

	tests := []struct {
		name      string
		ancestor  string
		candidate string
		want      bool
	}{
		{"direct child", "ministry", "region", true},
		{"deep descendant", "ministry", "schoolA", true},
		{"self is not descendant", "sector", "sector", false},
		{"sibling", "schoolA", "schoolB", false},
		{"inverted", "schoolA", "ministry", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := arena.IsDescendant(nodes[tt.ancestor].ID, nodes[tt.candidate].ID)
			if got != tt.want {
				t.Errorf("IsDescendant(%s, %s) = %v, want %v", tt.ancestor, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestArenaSubtree(t *testing.T) {
	nodes, all := buildTree()
	arena := NewArena(all)

	ids := arena.SubtreeIDs(nodes["sector"].ID)
	if len(ids) != 3 {
		t.Errorf("SubtreeIDs(sector) returned %d ids, want 3", len(ids))
	}

	if h := arena.SubtreeHeight(nodes["sector"].ID); h != 2 {
		t.Errorf("SubtreeHeight(sector) = %d, want 2", h)
	}
	if h := arena.SubtreeHeight(nodes["schoolA"].ID); h != 1 {
		t.Errorf("SubtreeHeight(schoolA) = %d, want 1", h)
	}
	if h := arena.SubtreeHeight(nodes["ministry"].ID); h != 4 {
		t.Errorf("SubtreeHeight(ministry) = %d, want 4", h)
	}
}

func TestArenaSubtreeOnLoopingChain(t *testing.T) {
	a := &Institution{ID: primitive.NewObjectID(), Name: "A", Type: TypeRegion, Level: 2, IsActive: true}
	b := &Institution{ID: primitive.NewObjectID(), Name: "B", Type: TypeSector, Level: 3, IsActive: true}
	a.ParentID = &b.ID
	b.ParentID = &a.ID
	arena := NewArena([]Institution{*a, *b})

	// Both walks must terminate and list each node once.
	ids := arena.SubtreeIDs(a.ID)
	if len(ids) != 2 {
		t.Errorf("SubtreeIDs on a looping chain returned %d ids, want 2", len(ids))
	}
	if h := arena.SubtreeHeight(a.ID); h != 2 {
		t.Errorf("SubtreeHeight on a looping chain = %d, want 2", h)
	}
}

func TestArenaMaterializeDepth(t *testing.T) {
	nodes, all := buildTree()
	arena := NewArena(all)

	tree := arena.Materialize(nodes["ministry"].ID, 2, false)
	if tree == nil {
		t.Fatal("Materialize() returned nil for an existing node")
	}

	if len(tree.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(tree.Children))
	}
	region := tree.Children[0]
	if len(region.Children) != 0 {
		t.Errorf("depth-limited tree should not expand level 3, got %d children", len(region.Children))
	}
	// Lazy-expansion hints survive the cutoff.
	if !region.HasChildren || region.ChildrenCount != 1 {
		t.Errorf("region HasChildren=%v ChildrenCount=%d, want true/1", region.HasChildren, region.ChildrenCount)
	}
}

func TestArenaMaterializeInactive(t *testing.T) {
	nodes, all := buildTree()
	for i := range all {
		if all[i].Name == "School B" {
			all[i].IsActive = false
		}
	}
	arena := NewArena(all)

	tree := arena.Materialize(nodes["sector"].ID, MaxQueryDepth, false)
	if tree == nil {
		t.Fatal("Materialize() returned nil for an existing node")
	}
	if len(tree.Children) != 1 {
		t.Errorf("active-only tree has %d children, want 1", len(tree.Children))
	}

	treeAll := arena.Materialize(nodes["sector"].ID, MaxQueryDepth, true)
	if treeAll == nil {
		t.Fatal("Materialize() returned nil for an existing node")
	}
	if len(treeAll.Children) != 2 {
		t.Errorf("include_inactive tree has %d children, want 2", len(treeAll.Children))
	}
}

func TestValidateCleanTree(t *testing.T) {
	_, all := buildTree()
	arena := NewArena(all)

	if issues := arena.Validate(); len(issues) != 0 {
		t.Errorf("Validate() on a clean tree returned %d issues: %v", len(issues), issues)
	}
}

func TestValidateOrphan(t *testing.T) {
	_, all := buildTree()
	ghost := primitive.NewObjectID()
	all = append(all, Institution{
		ID: primitive.NewObjectID(), Name: "Orphan School", Type: TypeSchool,
		ParentID: &ghost, Level: 4, IsActive: true,
	})
	arena := NewArena(all)

	issues := arena.Validate()
	found := false
	for _, issue := range issues {
		if issue.Kind == IssueOrphan {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want an orphan issue", issues)
	}
}

func TestValidateLevelMismatch(t *testing.T) {
	_, all := buildTree()
	for i := range all {
		if all[i].Name == "Sector" {
			all[i].Level = 5 // parent is level 2, so this must be 3
		}
	}
	arena := NewArena(all)

	issues := arena.Validate()
	found := false
	for _, issue := range issues {
		if issue.Kind == IssueLevelMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want a level_mismatch issue", issues)
	}
}

func TestValidateCycle(t *testing.T) {
	nodes, all := buildTree()
	// Point the ministry's parent at a school to close a loop.
	for i := range all {
		if all[i].Name == "Ministry" {
			all[i].ParentID = &nodes["schoolA"].ID
		}
	}
	arena := NewArena(all)

	issues := arena.Validate()
	found := false
	for _, issue := range issues {
		if issue.Kind == IssueCycle {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want a cycle issue", issues)
	}
}

func TestResolveRole(t *testing.T) {
	nodes, all := buildTree()
	arena := NewArena(all)

	tests := []struct {
		name    string
		origin  string
		role    string
		want    string
		wantErr bool
	}{
		{"self match", "schoolA", "schooladmin", "School A", false},
		{"walk to sector", "schoolA", "sektoradmin", "Sector", false},
		{"walk to region", "schoolA", "regionadmin", "Region", false},
		{"walk to ministry", "schoolB", "superadmin", "Ministry", false},
		{"unknown role", "schoolA", "director", "", true},
		{"no downward resolution", "ministry", "schooladmin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := arena.ResolveRole(nodes[tt.origin].ID, tt.role)
			if tt.wantErr {
				if !errors.Is(err, ErrUnresolvableRole) {
					t.Errorf("ResolveRole() error = %v, want ErrUnresolvableRole", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRole() error = %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("ResolveRole() = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestResolveRoleSkipsInactive(t *testing.T) {
	nodes, all := buildTree()
	for i := range all {
		if all[i].Name == "Sector" {
			all[i].IsActive = false
		}
	}
	arena := NewArena(all)

	if _, err := arena.ResolveRole(nodes["schoolA"].ID, "sektoradmin"); !errors.Is(err, ErrUnresolvableRole) {
		t.Errorf("ResolveRole() with inactive target error = %v, want ErrUnresolvableRole", err)
	}
}

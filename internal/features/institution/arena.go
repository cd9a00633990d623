package institution

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Arena is an in-memory index of the whole institution tree keyed by id.
// Traversal and validation operate on this snapshot instead of chasing
// lazily-loaded records, which keeps every walk bounded and makes subtree
// mutations easy to stage before they are committed.
type Arena struct {
	nodes    map[primitive.ObjectID]*Institution
	children map[primitive.ObjectID][]primitive.ObjectID
	roots    []primitive.ObjectID
}

// NewArena indexes the given nodes. Nodes whose parent is missing are not
// treated as roots; they surface as orphan issues in Validate.
func NewArena(institutions []Institution) *Arena {
	a := &Arena{
		nodes:    make(map[primitive.ObjectID]*Institution, len(institutions)),
		children: make(map[primitive.ObjectID][]primitive.ObjectID),
	}
	for i := range institutions {
		node := institutions[i]
		a.nodes[node.ID] = &node
	}
	for id, node := range a.nodes {
		if node.ParentID == nil {
			a.roots = append(a.roots, id)
			continue
		}
		a.children[*node.ParentID] = append(a.children[*node.ParentID], id)
	}
	a.sortIndex()
	return a
}

// sortIndex keeps sibling and root ordering stable (by name, then id) so
// materialized trees are deterministic.
func (a *Arena) sortIndex() {
	byName := func(ids []primitive.ObjectID) {
		sort.Slice(ids, func(i, j int) bool {
			ni, nj := a.nodes[ids[i]], a.nodes[ids[j]]
			if ni.Name != nj.Name {
				return ni.Name < nj.Name
			}
			return ni.ID.Hex() < nj.ID.Hex()
		})
	}
	byName(a.roots)
	for _, ids := range a.children {
		byName(ids)
	}
}

// Node returns the institution with the given id.
func (a *Arena) Node(id primitive.ObjectID) (*Institution, bool) {
	node, ok := a.nodes[id]
	return node, ok
}

// Len returns the number of indexed nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Roots returns the ids of all parentless nodes.
func (a *Arena) Roots() []primitive.ObjectID { return a.roots }

// Children returns the direct child ids of the given node.
func (a *Arena) Children(id primitive.ObjectID) []primitive.ObjectID {
	return a.children[id]
}

// Path walks parent links from the node up to its root and returns the
// chain ordered root..node. A missing ancestor is a data corruption signal
// and fails with ErrNodeNotFound; a looping chain fails with CycleError.
func (a *Arena) Path(id primitive.ObjectID) ([]Institution, error) {
	node, ok := a.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}

	var reversed []Institution
	seen := make(map[primitive.ObjectID]bool)
	current := node
	for {
		if seen[current.ID] {
			return nil, &CycleError{Chain: namesOf(reversed)}
		}
		seen[current.ID] = true
		reversed = append(reversed, *current)
		if current.ParentID == nil {
			break
		}
		parent, ok := a.nodes[*current.ParentID]
		if !ok {
			return nil, ErrNodeNotFound
		}
		current = parent
	}

	path := make([]Institution, len(reversed))
	for i := range reversed {
		path[len(reversed)-1-i] = reversed[i]
	}
	return path, nil
}

// IsDescendant reports whether candidate sits anywhere below ancestor,
// detected by walking candidate's parent chain.
func (a *Arena) IsDescendant(ancestor, candidate primitive.ObjectID) bool {
	node, ok := a.nodes[candidate]
	if !ok {
		return false
	}
	seen := make(map[primitive.ObjectID]bool)
	for node.ParentID != nil {
		if *node.ParentID == ancestor {
			return true
		}
		if seen[*node.ParentID] {
			return false // looping chain; Validate reports it
		}
		seen[*node.ParentID] = true
		parent, ok := a.nodes[*node.ParentID]
		if !ok {
			return false
		}
		node = parent
	}
	return false
}

// SubtreeIDs returns the node itself plus every descendant, breadth-first.
// A node is listed once even if a looping parent chain reaches it twice;
// Validate reports the cycle itself.
func (a *Arena) SubtreeIDs(id primitive.ObjectID) []primitive.ObjectID {
	if _, ok := a.nodes[id]; !ok {
		return nil
	}
	var out []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{id: true}
	queue := []primitive.ObjectID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		out = append(out, current)
		for _, childID := range a.children[current] {
			if seen[childID] {
				continue
			}
			seen[childID] = true
			queue = append(queue, childID)
		}
	}
	return out
}

// SubtreeHeight returns the number of levels the subtree rooted at id
// spans, counting the node itself (a leaf has height 1).
func (a *Arena) SubtreeHeight(id primitive.ObjectID) int {
	if _, ok := a.nodes[id]; !ok {
		return 0
	}
	return a.subtreeHeight(id, map[primitive.ObjectID]bool{id: true})
}

func (a *Arena) subtreeHeight(id primitive.ObjectID, seen map[primitive.ObjectID]bool) int {
	height := 1
	for _, childID := range a.children[id] {
		if seen[childID] {
			continue // looping chain; Validate reports it
		}
		seen[childID] = true
		if h := a.subtreeHeight(childID, seen) + 1; h > height {
			height = h
		}
	}
	return height
}

// Materialize builds the annotated tree for the node up to maxDepth levels
// below it. Inactive nodes are skipped unless includeInactive is set.
func (a *Arena) Materialize(id primitive.ObjectID, maxDepth int, includeInactive bool) *TreeNode {
	node, ok := a.nodes[id]
	if !ok {
		return nil
	}
	if !includeInactive && !node.IsActive {
		return nil
	}

	childIDs := a.visibleChildren(id, includeInactive)
	tree := &TreeNode{
		Institution:   *node,
		HasChildren:   len(childIDs) > 0,
		ChildrenCount: len(childIDs),
	}
	if maxDepth <= 1 {
		return tree
	}
	for _, childID := range childIDs {
		if child := a.Materialize(childID, maxDepth-1, includeInactive); child != nil {
			tree.Children = append(tree.Children, child)
		}
	}
	return tree
}

func (a *Arena) visibleChildren(id primitive.ObjectID, includeInactive bool) []primitive.ObjectID {
	if includeInactive {
		return a.children[id]
	}
	var out []primitive.ObjectID
	for _, childID := range a.children[id] {
		if child := a.nodes[childID]; child != nil && child.IsActive {
			out = append(out, childID)
		}
	}
	return out
}

// Validate runs the three structural checks independently and returns every
// issue found: orphans (parent link to a missing node), level mismatches
// (level != parent level + 1), and cycles in the parent graph. It never
// stops at the first problem.
func (a *Arena) Validate() []Issue {
	issues := []Issue{}
	issues = append(issues, a.findOrphans()...)
	issues = append(issues, a.findLevelMismatches()...)
	issues = append(issues, a.findCycles()...)
	return issues
}

func (a *Arena) findOrphans() []Issue {
	var issues []Issue
	for _, id := range a.sortedIDs() {
		node := a.nodes[id]
		if node.ParentID == nil {
			continue
		}
		if _, ok := a.nodes[*node.ParentID]; !ok {
			issues = append(issues, Issue{
				Kind:   IssueOrphan,
				NodeID: node.ID,
				Detail: node.Name + " references a missing parent " + node.ParentID.Hex(),
			})
		}
	}
	return issues
}

func (a *Arena) findLevelMismatches() []Issue {
	var issues []Issue
	for _, id := range a.sortedIDs() {
		node := a.nodes[id]
		if node.ParentID == nil {
			if node.Level != 1 {
				issues = append(issues, Issue{
					Kind:   IssueLevelMismatch,
					NodeID: node.ID,
					Detail: node.Name + " is a root but has level != 1",
				})
			}
			continue
		}
		parent, ok := a.nodes[*node.ParentID]
		if !ok {
			continue // reported as orphan
		}
		if node.Level != parent.Level+1 {
			issues = append(issues, Issue{
				Kind:   IssueLevelMismatch,
				NodeID: node.ID,
				Detail: node.Name + " has level out of step with its parent",
			})
		}
	}
	return issues
}

// findCycles runs a DFS along parent links from every unvisited node,
// keeping a recursion stack. A back-edge to a node already on the stack is
// a cycle, reported as the full chain of names.
func (a *Arena) findCycles() []Issue {
	var issues []Issue
	visited := make(map[primitive.ObjectID]bool)
	for _, id := range a.sortedIDs() {
		if visited[id] {
			continue
		}
		onStack := make(map[primitive.ObjectID]bool)
		var chain []string
		current := a.nodes[id]
		for current != nil {
			if onStack[current.ID] {
				chain = append(chain, current.Name)
				issues = append(issues, Issue{
					Kind:   IssueCycle,
					NodeID: current.ID,
					Detail: (&CycleError{Chain: chain}).Error(),
				})
				break
			}
			if visited[current.ID] {
				break // joins an already-cleared chain
			}
			visited[current.ID] = true
			onStack[current.ID] = true
			chain = append(chain, current.Name)
			if current.ParentID == nil {
				break
			}
			current = a.nodes[*current.ParentID]
		}
	}
	return issues
}

func (a *Arena) sortedIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(a.nodes))
	for id := range a.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

func namesOf(nodes []Institution) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

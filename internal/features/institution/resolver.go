package institution

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleLevels is the fixed mapping from approval roles to the organizational
// level responsible for them. Approval chains name roles; routing needs the
// concrete institution instance that owns the role for a given submitter.
var RoleLevels = map[string]int{
	"superadmin":  1, // ministry
	"regionadmin": 2, // region
	"sektoradmin": 3, // sector
	"schooladmin": 4, // school
}

// ResolveRole returns the nearest ancestor-or-self of the given institution
// whose level matches the role's organizational level. Inactive nodes are
// excluded from routing. A malformed or partial tree fails hard with
// ErrUnresolvableRole so the workflow engine never silently skips a level.
func (a *Arena) ResolveRole(institutionID primitive.ObjectID, role string) (*Institution, error) {
	wantedLevel, ok := RoleLevels[role]
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnresolvableRole, role)
	}

	node, ok := a.nodes[institutionID]
	if !ok {
		return nil, ErrNodeNotFound
	}

	seen := make(map[primitive.ObjectID]bool)
	current := node
	for current != nil {
		if seen[current.ID] {
			break // looping chain; Validate reports it
		}
		seen[current.ID] = true

		if current.Level == wantedLevel && current.IsActive {
			return current, nil
		}
		if current.ParentID == nil {
			break
		}
		current = a.nodes[*current.ParentID]
	}

	return nil, fmt.Errorf("%w: no active level-%d ancestor of %s for role %q",
		ErrUnresolvableRole, wantedLevel, node.Name, role)
}

package approval

import (
	"context"
	"fmt"

	"go-edu/internal/features/workflow"
	"go-edu/pkg/utils"
)

// Authorizer decides whether an actor may act on a request at a chain
// level. It is a separate interface so deployments can swap in their own
// policy without touching the engine.
type Authorizer interface {
	CanDecide(ctx context.Context, claims *utils.UserClaims, req *ApprovalRequest, entry workflow.ChainLevel) error
}

// HierarchyAuthorizer is the default policy: the actor must hold the chain
// level's role and belong to the institution the level resolved to, or
// hold an explicit delegation for the level. Superadmins may always act.
type HierarchyAuthorizer struct{}

func NewHierarchyAuthorizer() Authorizer {
	return &HierarchyAuthorizer{}
}

func (HierarchyAuthorizer) CanDecide(ctx context.Context, claims *utils.UserClaims, req *ApprovalRequest, entry workflow.ChainLevel) error {
	if claims == nil {
		return fmt.Errorf("%w: no authenticated actor", ErrUnauthorizedApprover)
	}
	if claims.HasRole("superadmin") {
		return nil
	}
	if delegate, ok := req.DelegateAt(entry.Level); ok && delegate == claims.UserID {
		return nil
	}
	if !claims.HasRole(entry.Role) {
		return fmt.Errorf("%w: level %d requires role %q", ErrUnauthorizedApprover, entry.Level, entry.Role)
	}
	if req.CurrentApproverInstitutionID == nil || claims.InstitutionID != req.CurrentApproverInstitutionID.Hex() {
		return fmt.Errorf("%w: request is assigned to a different institution", ErrUnauthorizedApprover)
	}
	return nil
}

package institution

import (
	"context"
	"fmt"
	"sync"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type HierarchyService interface {
	CreateInstitution(ctx context.Context, inst *Institution) (*Institution, error)
	GetInstitution(ctx context.Context, id string) (*Institution, error)
	GetHierarchy(ctx context.Context, maxDepth int, includeInactive bool) ([]*TreeNode, error)
	GetSubTree(ctx context.Context, id string, maxDepth int, includeInactive bool) (*TreeNode, error)
	GetPath(ctx context.Context, id string) ([]Institution, error)
	GetByLevel(ctx context.Context, level int, includeInactive bool) ([]Institution, error)
	Move(ctx context.Context, id string, newParentID *string) (*Institution, error)
	Validate(ctx context.Context) ([]Issue, error)
	Statistics(ctx context.Context) (*HierarchyStats, error)
	Deactivate(ctx context.Context, id string) error

	// ResolveRole maps an approval role to the concrete institution
	// responsible for it, walking up from the given origin institution.
	ResolveRole(ctx context.Context, institutionID primitive.ObjectID, role string) (*Institution, error)
}

type HierarchyServiceImpl struct {
	Repo         InstitutionRepository
	AuditService audit.AuditService
	Logger       *zap.Logger

	// moveMu serializes subtree moves. Each move is additionally a single
	// database transaction; the lock keeps two overlapping moves from
	// computing levels against stale snapshots of each other.
	moveMu sync.Mutex
}

func NewHierarchyService(repo InstitutionRepository, auditService audit.AuditService, logger *zap.Logger) HierarchyService {
	return &HierarchyServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Logger:       logger,
	}
}

func (s *HierarchyServiceImpl) snapshot(ctx context.Context) (*Arena, error) {
	institutions, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewArena(institutions), nil
}

func (s *HierarchyServiceImpl) CreateInstitution(ctx context.Context, inst *Institution) (*Institution, error) {
	if inst.Name == "" {
		return nil, fmt.Errorf("institution name is required")
	}

	if inst.ParentID == nil {
		inst.Level = 1
	} else {
		parent, err := s.Repo.FindByID(ctx, inst.ParentID.Hex())
		if err != nil {
			return nil, err
		}
		inst.Level = parent.Level + 1
	}
	if inst.Level > MaxTreeDepth {
		return nil, fmt.Errorf("%w: level %d is beyond %d", ErrDepthExceeded, inst.Level, MaxTreeDepth)
	}
	inst.IsActive = true

	if err := s.Repo.Create(ctx, inst); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "institutions", inst.ID.Hex(), map[string]common_models.Change{
		"name":  {Old: nil, New: inst.Name},
		"level": {Old: nil, New: inst.Level},
	})
	return inst, nil
}

func (s *HierarchyServiceImpl) GetInstitution(ctx context.Context, id string) (*Institution, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *HierarchyServiceImpl) GetHierarchy(ctx context.Context, maxDepth int, includeInactive bool) ([]*TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = MaxTreeDepth
	}
	if maxDepth > MaxQueryDepth {
		return nil, fmt.Errorf("%w: max_depth %d is beyond %d", ErrDepthExceeded, maxDepth, MaxQueryDepth)
	}

	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	roots := []*TreeNode{}
	for _, rootID := range arena.Roots() {
		if node := arena.Materialize(rootID, maxDepth, includeInactive); node != nil {
			roots = append(roots, node)
		}
	}
	return roots, nil
}

func (s *HierarchyServiceImpl) GetSubTree(ctx context.Context, id string, maxDepth int, includeInactive bool) (*TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = MaxTreeDepth
	}
	if maxDepth > MaxQueryDepth {
		return nil, fmt.Errorf("%w: max_depth %d is beyond %d", ErrDepthExceeded, maxDepth, MaxQueryDepth)
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNodeNotFound
	}

	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	node := arena.Materialize(oid, maxDepth, includeInactive)
	if node == nil {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

func (s *HierarchyServiceImpl) GetPath(ctx context.Context, id string) ([]Institution, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNodeNotFound
	}

	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return arena.Path(oid)
}

func (s *HierarchyServiceImpl) GetByLevel(ctx context.Context, level int, includeInactive bool) ([]Institution, error) {
	if level < 1 || level > MaxTreeDepth {
		return nil, fmt.Errorf("%w: level must be between 1 and %d", ErrDepthExceeded, MaxTreeDepth)
	}
	return s.Repo.ListByLevel(ctx, level, includeInactive)
}

// Move re-parents a node and recomputes levels for its whole subtree in a
// single transaction. It rejects moves that would create a cycle or push
// the deepest leaf beyond the maximum depth.
func (s *HierarchyServiceImpl) Move(ctx context.Context, id string, newParentID *string) (*Institution, error) {
	s.moveMu.Lock()
	defer s.moveMu.Unlock()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNodeNotFound
	}

	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	node, ok := arena.Node(oid)
	if !ok {
		return nil, ErrNodeNotFound
	}

	newLevel := 1
	var parentOID *primitive.ObjectID
	if newParentID != nil && *newParentID != "" {
		poid, err := primitive.ObjectIDFromHex(*newParentID)
		if err != nil {
			return nil, ErrNodeNotFound
		}
		parent, ok := arena.Node(poid)
		if !ok {
			return nil, ErrNodeNotFound
		}
		if poid == oid || arena.IsDescendant(oid, poid) {
			return nil, &CycleError{Chain: s.cycleChain(arena, oid, poid)}
		}
		parentOID = &poid
		newLevel = parent.Level + 1
	}

	if newLevel+arena.SubtreeHeight(oid)-1 > MaxTreeDepth {
		return nil, fmt.Errorf("%w: subtree would reach below level %d", ErrDepthExceeded, MaxTreeDepth)
	}

	levels, err := s.subtreeLevels(arena, oid, newLevel)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.MoveSubtree(ctx, oid, parentOID, levels); err != nil {
		return nil, err
	}

	oldParent := ""
	if node.ParentID != nil {
		oldParent = node.ParentID.Hex()
	}
	newParent := ""
	if parentOID != nil {
		newParent = parentOID.Hex()
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionMove, "institutions", id, map[string]common_models.Change{
		"parent_id": {Old: oldParent, New: newParent},
		"level":     {Old: node.Level, New: newLevel},
	})
	s.Logger.Info("institution moved",
		zap.String("institution_id", id),
		zap.String("new_parent_id", newParent),
		zap.Int("new_level", newLevel))

	return s.Repo.FindByID(ctx, id)
}

// subtreeLevels stages the re-leveling: the node lands at newLevel and every
// descendant sits one level below its parent. Reaching a node twice means the
// stored parent graph already loops; the move fails instead of restructuring
// corrupted data.
func (s *HierarchyServiceImpl) subtreeLevels(arena *Arena, nodeID primitive.ObjectID, newLevel int) (map[primitive.ObjectID]int, error) {
	levels := make(map[primitive.ObjectID]int)
	type frame struct {
		id    primitive.ObjectID
		level int
	}
	queue := []frame{{nodeID, newLevel}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if _, ok := levels[f.id]; ok {
			node, _ := arena.Node(f.id)
			return nil, &CycleError{Chain: []string{node.Name, node.Name}}
		}
		levels[f.id] = f.level
		for _, childID := range arena.Children(f.id) {
			queue = append(queue, frame{childID, f.level + 1})
		}
	}
	return levels, nil
}

// cycleChain builds the would-be cycle for the error message: the moved
// node, down through the new parent, and back to the moved node.
func (s *HierarchyServiceImpl) cycleChain(arena *Arena, nodeID, newParentID primitive.ObjectID) []string {
	node, _ := arena.Node(nodeID)
	chain := []string{node.Name}

	path, err := arena.Path(newParentID)
	if err == nil {
		inside := false
		for _, p := range path {
			if p.ID == nodeID {
				inside = true
				continue
			}
			if inside {
				chain = append(chain, p.Name)
			}
		}
	}
	return append(chain, node.Name)
}

func (s *HierarchyServiceImpl) Validate(ctx context.Context) ([]Issue, error) {
	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	issues := arena.Validate()
	if len(issues) > 0 {
		s.Logger.Warn("hierarchy validation found issues", zap.Int("count", len(issues)))
	}
	return issues, nil
}

func (s *HierarchyServiceImpl) Statistics(ctx context.Context) (*HierarchyStats, error) {
	institutions, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &HierarchyStats{
		TotalNodes:   len(institutions),
		CountByLevel: make(map[int]int),
		CountByType:  make(map[string]int),
	}
	for _, inst := range institutions {
		if inst.IsActive {
			stats.ActiveNodes++
		}
		if inst.ParentID == nil {
			stats.RootCount++
		}
		stats.CountByLevel[inst.Level]++
		stats.CountByType[inst.Type]++
	}
	return stats, nil
}

// Deactivate soft-disables a node. The subtree stays in place but the node
// is excluded from routing and default tree views.
func (s *HierarchyServiceImpl) Deactivate(ctx context.Context, id string) error {
	if err := s.Repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "institutions", id, map[string]common_models.Change{
		"is_active": {Old: true, New: false},
	})
	return nil
}

func (s *HierarchyServiceImpl) ResolveRole(ctx context.Context, institutionID primitive.ObjectID, role string) (*Institution, error) {
	arena, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return arena.ResolveRole(institutionID, role)
}

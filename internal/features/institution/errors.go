package institution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound signals a missing institution, including a broken
	// ancestor link discovered during a path walk.
	ErrNodeNotFound = errors.New("institution not found")

	// ErrDepthExceeded signals a request or mutation that would exceed the
	// allowed tree depth.
	ErrDepthExceeded = errors.New("hierarchy depth exceeded")

	// ErrUnresolvableRole signals that no ancestor institution matches the
	// organizational level a role maps to. Approval routing treats this as
	// a hard failure.
	ErrUnresolvableRole = errors.New("role cannot be resolved against the hierarchy")
)

// CycleError reports a parent chain that loops back on itself.
type CycleError struct {
	Chain []string // institution names along the cycle
}

func (e *CycleError) Error() string {
	if len(e.Chain) == 0 {
		return "cycle detected in institution hierarchy"
	}
	return fmt.Sprintf("cycle detected in institution hierarchy: %s", strings.Join(e.Chain, " -> "))
}

// IsCycle reports whether err is a CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

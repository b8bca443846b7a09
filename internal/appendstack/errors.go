package appendstack

import (
	"errors"
	"fmt"
)

var (
	// ErrLayerFull is returned by Layer.Append once the layer holds its capacity.
	// Stack.Push consumes it to trigger rotation.
	ErrLayerFull = errors.New("layer full")

	// ErrInvalidConfig is returned when max layers or layer capacity is not positive.
	ErrInvalidConfig = errors.New("max layers and layer capacity must be positive")

	// ErrMalformedSnapshot is returned by Snapshot.Validate and FromSnapshot.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrStructuralConflict matches every *StructuralConflictError via errors.Is.
	ErrStructuralConflict = errors.New("structural conflict")
)

// ConflictReason classifies a failed merge.
type ConflictReason int

const (
	// ReasonConfigMismatch: max layers or layer capacity differ between snapshots.
	ReasonConfigMismatch ConflictReason = iota + 1
	// ReasonHistoryPruned: the ancestor's newest layer is gone from committed or attempted.
	ReasonHistoryPruned
	// ReasonMalformed: a snapshot violates the stack invariants.
	ReasonMalformed
)

func (r ConflictReason) String() string {
	switch r {
	case ReasonConfigMismatch:
		return "configuration mismatch"
	case ReasonHistoryPruned:
		return "ancestor history pruned"
	case ReasonMalformed:
		return "malformed snapshot"
	default:
		return "unknown"
	}
}

// StructuralConflictError reports that two concurrent versions cannot be merged.
// The caller must abort and retry the transaction from a fresh snapshot.
type StructuralConflictError struct {
	Reason ConflictReason
	Detail string
}

func (e *StructuralConflictError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("structural conflict: %s", e.Reason)
	}
	return fmt.Sprintf("structural conflict: %s: %s", e.Reason, e.Detail)
}

// Is reports whether target is ErrStructuralConflict.
func (e *StructuralConflictError) Is(target error) bool {
	return target == ErrStructuralConflict
}

func conflict(reason ConflictReason, format string, args ...any) error {
	return &StructuralConflictError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

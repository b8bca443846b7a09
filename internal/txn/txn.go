package txn

import (
	"context"

	"github.com/google/uuid"

	"github.com/rzbill/auditstack/internal/appendstack"
)

// Txn is a single optimistic transaction over one stack. It is not safe for
// concurrent use.
type Txn[T any] struct {
	id          string
	engine      *Engine[T]
	namespace   string
	name        string
	base        appendstack.Snapshot[T]
	baseVersion uint64
	stack       *appendstack.Stack[T]
	pruned      []appendstack.LayerState[T]
	done        bool
	committed   appendstack.Snapshot[T]
	version     uint64
}

func newTxn[T any](e *Engine[T], namespace, name string, base appendstack.Snapshot[T], version uint64) (*Txn[T], error) {
	st, err := appendstack.FromSnapshot(base)
	if err != nil {
		return nil, err
	}
	return &Txn[T]{
		id:          uuid.NewString(),
		engine:      e,
		namespace:   namespace,
		name:        name,
		base:        base,
		baseVersion: version,
		stack:       st,
	}, nil
}

// ID returns the transaction id used in logs.
func (tx *Txn[T]) ID() string { return tx.id }

// BaseVersion is the stored version the transaction started from. Zero means
// the stack did not exist.
func (tx *Txn[T]) BaseVersion() uint64 { return tx.baseVersion }

// Stack exposes the private working stack. Pushes that should archive pruned
// layers must pass Stage as the prune callback, or go through Push.
func (tx *Txn[T]) Stack() *appendstack.Stack[T] { return tx.stack }

// Push appends item to the working stack, staging any pruned layer.
func (tx *Txn[T]) Push(item T) error {
	if tx.done {
		return ErrDone
	}
	return tx.stack.Push(item, tx.Stage)
}

// Stage records a pruned layer for archiving at commit. It has the
// appendstack.PruneFunc signature.
func (tx *Txn[T]) Stage(generation uint64, items []T) error {
	if tx.done {
		return ErrDone
	}
	tx.pruned = append(tx.pruned, appendstack.LayerState[T]{Generation: generation, Items: items})
	return nil
}

// Commit stores the working stack. If another commit landed since Begin, the
// additions are merged onto it and OutcomeMerged is returned. A merge that is
// structurally impossible returns an error wrapping ErrConflict; the caller
// should begin again.
func (tx *Txn[T]) Commit(ctx context.Context) (Outcome, error) {
	if tx.done {
		return 0, ErrDone
	}
	tx.done = true
	return tx.engine.commit(ctx, tx)
}

// Committed returns the state stored by a successful Commit and its version.
// After a merge it differs from Stack: the transaction's additions sit on top
// of the other writer's state.
func (tx *Txn[T]) Committed() (appendstack.Snapshot[T], uint64) {
	return tx.committed, tx.version
}

// Rollback discards the transaction.
func (tx *Txn[T]) Rollback() {
	tx.done = true
	tx.pruned = nil
}

package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rzbill/auditstack/internal/appendstack"
	"github.com/rzbill/auditstack/internal/config"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
	"github.com/rzbill/auditstack/pkg/log"
)

var (
	// ErrConflict wraps an appendstack.StructuralConflictError raised while
	// merging concurrent commits.
	ErrConflict = errors.New("txn: unresolvable conflict")
	// ErrNotFound is returned by Load for a stack that was never committed.
	ErrNotFound = errors.New("txn: stack not found")
	// ErrDone is returned when a finished transaction is reused.
	ErrDone = errors.New("txn: transaction already finished")
)

// Shape is the configuration of a stack created by its first transaction.
type Shape struct {
	MaxLayers     int
	LayerCapacity int
}

// Archiver receives layers leaving the stored state. Implementations add
// their writes to b so they commit atomically with the new state.
type Archiver[T any] interface {
	StageArchive(b *pebble.Batch, namespace, name string, layer appendstack.LayerState[T]) error
}

// Options configures an Engine.
type Options[T any] struct {
	DB        *pebblestore.DB
	Policy    config.CommitPolicy
	CacheSize int
	Archiver  Archiver[T]
	Metrics   Metrics
	Logger    log.Logger
}

type cached[T any] struct {
	version uint64
	snap    appendstack.Snapshot[T]
}

// Engine commits stack transactions. It must be the only writer of its
// keyspace; commits are serialized inside one process.
type Engine[T any] struct {
	db       *pebblestore.DB
	policy   config.CommitPolicy
	archiver Archiver[T]
	metrics  Metrics
	logger   log.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, cached[T]]
}

// NewEngine builds an engine over db.
func NewEngine[T any](opts Options[T]) (*Engine[T], error) {
	if opts.DB == nil {
		return nil, errors.New("txn: Options.DB is required")
	}
	e := &Engine[T]{
		db:       opts.DB,
		policy:   opts.Policy,
		archiver: opts.Archiver,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if e.policy.MaxAttempts <= 0 {
		e.policy = config.Default().Commit
	}
	if e.metrics == nil {
		e.metrics = NoopMetrics{}
	}
	if e.logger == nil {
		e.logger = log.NewNop()
	}
	e.logger = e.logger.WithComponent("txn")
	if opts.CacheSize > 0 {
		c, err := lru.New[string, cached[T]](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	return e, nil
}

// read returns the stored snapshot and version of key. found is false for a
// stack that was never committed.
func (e *Engine[T]) read(key []byte) (snap appendstack.Snapshot[T], version uint64, found bool, err error) {
	if e.cache != nil {
		if c, ok := e.cache.Get(string(key)); ok {
			return c.snap.Clone(), c.version, true, nil
		}
	}
	b, err := e.db.Get(key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return snap, 0, false, nil
	}
	if err != nil {
		return snap, 0, false, err
	}
	version, snap, err = decodeState[T](b)
	if err != nil {
		return snap, 0, false, fmt.Errorf("%s: %w", key, err)
	}
	if e.cache != nil {
		e.cache.Add(string(key), cached[T]{version: version, snap: snap.Clone()})
	}
	return snap, version, true, nil
}

// Load returns the committed snapshot of a stack and its version.
func (e *Engine[T]) Load(namespace, name string) (appendstack.Snapshot[T], uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, version, found, err := e.read(StateKey(namespace, name))
	if err != nil {
		return snap, 0, err
	}
	if !found {
		return snap, 0, ErrNotFound
	}
	return snap, version, nil
}

// Begin starts a transaction on a stack. A stack that does not exist yet
// starts empty with the given shape and is created by the first commit.
func (e *Engine[T]) Begin(namespace, name string, shape Shape) (*Txn[T], error) {
	e.mu.Lock()
	snap, version, found, err := e.read(StateKey(namespace, name))
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !found {
		st, err := appendstack.New[T](shape.MaxLayers, shape.LayerCapacity)
		if err != nil {
			return nil, err
		}
		snap = st.Snapshot()
	}
	return newTxn(e, namespace, name, snap, version)
}

// Update runs fn inside a transaction and commits it. Commits that hit
// ErrConflict are retried with a fresh transaction under the engine's backoff
// policy; any other error ends the loop.
func (e *Engine[T]) Update(ctx context.Context, namespace, name string, shape Shape, fn func(tx *Txn[T]) error) (Outcome, error) {
	var outcome Outcome
	attempt := 0
	op := func() error {
		attempt++
		tx, err := e.Begin(namespace, name, shape)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return backoff.Permanent(err)
		}
		outcome, err = tx.Commit(ctx)
		if errors.Is(err, ErrConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.metrics.ObserveRetry()
		e.logger.Warn("retrying transaction",
			log.Str("ns", namespace), log.Str("stack", name),
			log.Int("attempt", attempt), log.Duration("wait", wait), log.Err(err))
	}
	err := backoff.RetryNotify(op, e.backoff(ctx), notify)
	if err != nil {
		return OutcomeConflict, err
	}
	return outcome, nil
}

func (e *Engine[T]) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.policy.BaseDelay
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = time.Millisecond
	}
	exp.MaxInterval = e.policy.MaxDelay
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithMaxRetries(exp, uint64(e.policy.MaxAttempts-1))
	return backoff.WithContext(b, ctx)
}

// commit writes tx under the engine lock, merging when the stored version
// moved since tx began.
func (e *Engine[T]) commit(ctx context.Context, tx *Txn[T]) (Outcome, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	key := StateKey(tx.namespace, tx.name)
	current, version, found, err := e.read(key)
	if err != nil {
		return 0, err
	}

	attempted := tx.stack.Snapshot()
	outcome := OutcomeCommitted
	next := attempted
	archived := tx.pruned
	if version != tx.baseVersion {
		if !found {
			return 0, fmt.Errorf("txn: %s vanished at version %d", key, tx.baseVersion)
		}
		res, err := appendstack.Merge(tx.base, current, attempted)
		if err != nil {
			e.metrics.ObserveCommit(OutcomeConflict, time.Since(start))
			e.logger.Debug("merge failed",
				log.Str("ns", tx.namespace), log.Str("stack", tx.name),
				log.Uint64("base", tx.baseVersion), log.Uint64("current", version), log.Err(err))
			return OutcomeConflict, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		outcome = OutcomeMerged
		next = res.Snapshot
		archived = res.Dropped
	}

	value, err := encodeState(version+1, next)
	if err != nil {
		return 0, err
	}
	b := e.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return 0, err
	}
	if e.archiver != nil {
		for _, layer := range archived {
			if err := e.archiver.StageArchive(b, tx.namespace, tx.name, layer); err != nil {
				return 0, err
			}
		}
	}
	if err := e.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	if e.cache != nil {
		e.cache.Add(string(key), cached[T]{version: version + 1, snap: next.Clone()})
	}
	tx.committed = next
	tx.version = version + 1
	if e.archiver != nil && len(archived) > 0 {
		e.metrics.ObserveArchived(len(archived))
	}
	e.metrics.ObserveCommit(outcome, time.Since(start))
	e.logger.Debug("commit",
		log.Str("txn", tx.id), log.Str("ns", tx.namespace), log.Str("stack", tx.name),
		log.Str("outcome", outcome.String()), log.Uint64("version", version+1),
		log.Int("archived", len(archived)))
	return outcome, nil
}

package txn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/auditstack/internal/appendstack"
	"github.com/rzbill/auditstack/internal/config"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
)

type memArchiver struct {
	mu     sync.Mutex
	layers []appendstack.LayerState[string]
}

func (m *memArchiver) StageArchive(_ *pebble.Batch, _, _ string, l appendstack.LayerState[string]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = append(m.layers, l)
	return nil
}

func (m *memArchiver) generations() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for _, l := range m.layers {
		out = append(out, l.Generation)
	}
	return out
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	retries  int
	archived int
}

func (m *countingMetrics) ObserveCommit(o Outcome, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[Outcome]int{}
	}
	m.outcomes[o]++
}

func (m *countingMetrics) ObserveRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *countingMetrics) ObserveArchived(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived += n
}

type fixture struct {
	db       *pebblestore.DB
	engine   *Engine[string]
	archiver *memArchiver
	metrics  *countingMetrics
}

func newFixture(t *testing.T, cacheSize int) *fixture {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, archiver: &memArchiver{}, metrics: &countingMetrics{}}
	f.engine, err = NewEngine(Options[string]{
		DB:        db,
		Policy:    config.CommitPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		CacheSize: cacheSize,
		Archiver:  f.archiver,
		Metrics:   f.metrics,
	})
	require.NoError(t, err)
	return f
}

var small = Shape{MaxLayers: 2, LayerCapacity: 1}

func items(snap appendstack.Snapshot[string]) []string {
	var out []string
	for i := len(snap.Layers) - 1; i >= 0; i-- {
		out = append(out, snap.Layers[i].Items...)
	}
	return out
}

func seed(t *testing.T, f *fixture, shape Shape, values ...string) {
	t.Helper()
	tx, err := f.engine.Begin("default", "audit", shape)
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, tx.Push(v))
	}
	_, err = tx.Commit(context.Background())
	require.NoError(t, err)
}

func TestCommitCreatesStack(t *testing.T) {
	for _, cacheSize := range []int{0, 8} {
		f := newFixture(t, cacheSize)

		_, _, err := f.engine.Load("default", "audit")
		require.ErrorIs(t, err, ErrNotFound)

		tx, err := f.engine.Begin("default", "audit", Shape{MaxLayers: 3, LayerCapacity: 2})
		require.NoError(t, err)
		assert.NotEmpty(t, tx.ID())
		assert.Zero(t, tx.BaseVersion())
		require.NoError(t, tx.Push("a"))
		require.NoError(t, tx.Push("b"))
		require.NoError(t, tx.Push("c"))

		outcome, err := tx.Commit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeCommitted, outcome)

		snap, version, err := f.engine.Load("default", "audit")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), version)
		assert.Equal(t, []string{"a", "b", "c"}, items(snap))
		assert.Equal(t, 3, snap.MaxLayers)
	}
}

func TestConcurrentCommitsMerge(t *testing.T) {
	f := newFixture(t, 8)
	seed(t, f, Shape{MaxLayers: 4, LayerCapacity: 2}, "a")

	tx1, err := f.engine.Begin("default", "audit", Shape{})
	require.NoError(t, err)
	tx2, err := f.engine.Begin("default", "audit", Shape{})
	require.NoError(t, err)

	require.NoError(t, tx1.Push("b"))
	require.NoError(t, tx1.Push("c"))
	require.NoError(t, tx2.Push("x"))

	o1, err := tx1.Commit(context.Background())
	require.NoError(t, err)
	o2, err := tx2.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, o1)
	assert.Equal(t, OutcomeMerged, o2)

	committed, v := tx2.Committed()
	assert.Equal(t, uint64(3), v)
	head, ok := committed.Head()
	require.True(t, ok)
	assert.Equal(t, appendstack.Cursor{Generation: 1, Index: 1}, head)

	snap, version, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, []string{"a", "b", "c", "x"}, items(snap))
	assert.Equal(t, 1, f.metrics.outcomes[OutcomeMerged])
}

func TestConcurrentCreatorsMerge(t *testing.T) {
	f := newFixture(t, 0)
	shape := Shape{MaxLayers: 3, LayerCapacity: 2}

	tx1, err := f.engine.Begin("default", "audit", shape)
	require.NoError(t, err)
	tx2, err := f.engine.Begin("default", "audit", shape)
	require.NoError(t, err)
	require.NoError(t, tx1.Push("a"))
	require.NoError(t, tx2.Push("b"))

	_, err = tx1.Commit(context.Background())
	require.NoError(t, err)
	outcome, err := tx2.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)

	snap, _, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, items(snap))
}

func TestPrunedHistoryConflicts(t *testing.T) {
	f := newFixture(t, 8)
	seed(t, f, small, "a")

	tx1, err := f.engine.Begin("default", "audit", small)
	require.NoError(t, err)
	tx2, err := f.engine.Begin("default", "audit", small)
	require.NoError(t, err)

	for _, v := range []string{"b", "c", "d"} {
		require.NoError(t, tx1.Push(v))
	}
	_, err = tx1.Commit(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx2.Push("x"))
	outcome, err := tx2.Commit(context.Background())
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, OutcomeConflict, outcome)

	var sce *appendstack.StructuralConflictError
	require.True(t, errors.As(err, &sce))
	assert.Equal(t, appendstack.ReasonHistoryPruned, sce.Reason)

	// the losing transaction left no trace
	snap, version, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, []string{"c", "d"}, items(snap))
}

func TestDirectCommitArchivesPrunedLayers(t *testing.T) {
	f := newFixture(t, 0)
	seed(t, f, small, "a", "b", "c", "d")

	assert.Equal(t, []uint64{0, 1}, f.archiver.generations())
	assert.Equal(t, 2, f.metrics.archived)
}

func TestMergeArchivesDroppedLayers(t *testing.T) {
	f := newFixture(t, 0)
	seed(t, f, small, "a")

	tx1, err := f.engine.Begin("default", "audit", small)
	require.NoError(t, err)
	tx2, err := f.engine.Begin("default", "audit", small)
	require.NoError(t, err)
	require.NoError(t, tx1.Push("b"))
	require.NoError(t, tx2.Push("x"))

	_, err = tx1.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.archiver.generations())

	outcome, err := tx2.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, outcome)
	assert.Equal(t, []uint64{0}, f.archiver.generations())
	assert.Equal(t, []string{"a"}, f.archiver.layers[0].Items)

	snap, _, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "x"}, items(snap))
}

func TestUpdateRetriesConflicts(t *testing.T) {
	f := newFixture(t, 8)
	seed(t, f, small, "a")

	attempts := 0
	outcome, err := f.engine.Update(context.Background(), "default", "audit", small, func(tx *Txn[string]) error {
		attempts++
		if attempts == 1 {
			// a competing writer prunes past this transaction's base
			seed(t, f, small, "b", "c", "d")
		}
		return tx.Push("x")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, OutcomeCommitted, outcome)
	assert.Equal(t, 1, f.metrics.retries)

	snap, _, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "x"}, items(snap))
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 8)
	seed(t, f, small, "a")

	attempts := 0
	_, err := f.engine.Update(context.Background(), "default", "audit", small, func(tx *Txn[string]) error {
		attempts++
		seed(t, f, small, "p", "q", "r")
		return tx.Push("x")
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, attempts)
}

func TestUpdateDoesNotRetryCallbackErrors(t *testing.T) {
	f := newFixture(t, 0)
	boom := errors.New("boom")
	attempts := 0
	_, err := f.engine.Update(context.Background(), "default", "audit", small, func(*Txn[string]) error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)

	_, _, err = f.engine.Load("default", "audit")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParallelUpdatesKeepEveryItem(t *testing.T) {
	f := newFixture(t, 8)
	shape := Shape{MaxLayers: 50, LayerCapacity: 4}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := f.engine.Update(context.Background(), "default", "audit", shape, func(tx *Txn[string]) error {
					return tx.Push("item")
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	snap, version, err := f.engine.Load("default", "audit")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), version)
	assert.Len(t, items(snap), 40)
	require.NoError(t, snap.Validate())
}

func TestFinishedTransactionRejectsUse(t *testing.T) {
	f := newFixture(t, 0)
	tx, err := f.engine.Begin("default", "audit", small)
	require.NoError(t, err)
	tx.Rollback()
	assert.ErrorIs(t, tx.Push("a"), ErrDone)
	_, err = tx.Commit(context.Background())
	assert.ErrorIs(t, err, ErrDone)
}

func TestCorruptStateIsReported(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.db.Set(StateKey("default", "audit"), []byte("not a record at all")))

	_, _, err := f.engine.Load("default", "audit")
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = f.engine.Begin("default", "audit", small)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewEngineRequiresDB(t *testing.T) {
	_, err := NewEngine(Options[string]{})
	assert.Error(t, err)
}

package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rzbill/auditstack/internal/appendstack"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
)

// ErrNotFound is returned when no layer is archived under a generation.
var ErrNotFound = errors.New("archive: layer not found")

// Layer is an archived layer with the log it came from.
type Layer[T any] struct {
	Namespace string
	Name      string
	appendstack.LayerState[T]
}

// Store reads and writes archived layers.
type Store[T any] struct {
	db *pebblestore.DB
}

// NewStore returns a store over db.
func NewStore[T any](db *pebblestore.DB) *Store[T] {
	return &Store[T]{db: db}
}

// StageArchive adds the write of layer to b.
func (s *Store[T]) StageArchive(b *pebble.Batch, namespace, name string, layer appendstack.LayerState[T]) error {
	value, err := msgpack.Marshal(&layer)
	if err != nil {
		return err
	}
	return b.Set(KeyLayer(namespace, name, layer.Generation), value, nil)
}

// Get returns the archived layer with the given generation.
func (s *Store[T]) Get(namespace, name string, generation uint64) (appendstack.LayerState[T], error) {
	var layer appendstack.LayerState[T]
	b, err := s.db.Get(KeyLayer(namespace, name, generation))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return layer, ErrNotFound
	}
	if err != nil {
		return layer, err
	}
	if err := msgpack.Unmarshal(b, &layer); err != nil {
		return layer, fmt.Errorf("archive: decode generation %d: %w", generation, err)
	}
	return layer, nil
}

// List returns the archived layers of a log, oldest first.
func (s *Store[T]) List(namespace, name string) ([]appendstack.LayerState[T], error) {
	var (
		out     []appendstack.LayerState[T]
		scanErr error
	)
	for _, v := range s.db.Scan(KeyLogPrefix(namespace, name), &scanErr) {
		var layer appendstack.LayerState[T]
		if err := msgpack.Unmarshal(v, &layer); err != nil {
			return nil, err
		}
		out = append(out, layer)
	}
	return out, scanErr
}

// Walk yields every archived layer of a namespace ordered by log name, then
// generation.
func (s *Store[T]) Walk(namespace string, fn func(Layer[T]) error) error {
	prefix := KeyNamespacePrefix(namespace)
	var scanErr error
	for k, v := range s.db.Scan(prefix, &scanErr) {
		name, _, ok := splitKey(prefix, k)
		if !ok {
			continue
		}
		l := Layer[T]{Namespace: namespace, Name: name}
		if err := msgpack.Unmarshal(v, &l.LayerState); err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return scanErr
}

// Purge deletes archived layers of a log with generation below before.
// Deletes are committed in batches of up to batchLimit keys with an optional
// throttle between commits. Returns the number of layers deleted.
func (s *Store[T]) Purge(ctx context.Context, namespace, name string, before uint64, batchLimit int, throttle time.Duration) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 256
	}
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: KeyLayer(namespace, name, 0),
		UpperBound: KeyLayer(namespace, name, before),
	})
	if err != nil {
		return 0, err
	}
	defer it.Close()

	deleted := 0
	for ok := it.First(); ok; {
		b := s.db.NewBatch()
		n := 0
		for ok && n < batchLimit {
			if err := b.Delete(it.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			n++
			ok = it.Next()
		}
		if err := s.db.CommitBatch(ctx, b); err != nil {
			b.Close()
			return deleted, err
		}
		b.Close()
		deleted += n
		if ok && throttle > 0 {
			time.Sleep(throttle)
		}
	}
	return deleted, it.Error()
}

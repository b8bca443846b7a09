package auditsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/auditstack/internal/appendstack"
	"github.com/rzbill/auditstack/internal/auditlog"
	"github.com/rzbill/auditstack/internal/registry"
	"github.com/rzbill/auditstack/internal/runtime"
	"github.com/rzbill/auditstack/internal/txn"
	logpkg "github.com/rzbill/auditstack/pkg/log"
)

// ErrInvalidArgument marks caller errors: bad names, bad filters, empty batches.
var ErrInvalidArgument = errors.New("invalid argument")

// EntryInput describes one entry to add.
type EntryInput struct {
	Name   string         `json:"name"`
	OID    string         `json:"oid"`
	Fields map[string]any `json:"fields"`
}

// Query selects records newer than After.
type Query struct {
	After  appendstack.Cursor
	OIDs   []string
	Filter string
	// Limit caps the number of records returned; zero means no cap.
	Limit int
}

// LayerInfo summarizes one retained layer.
type LayerInfo struct {
	Generation uint64 `json:"generation"`
	Len        int    `json:"len"`
	Capacity   int    `json:"capacity"`
}

// Service provides audit log operations on top of the runtime.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	now    func() time.Time
}

// New returns a Service logging through the runtime logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, rt.Logger())
}

// NewWithLogger returns a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Service{rt: rt, logger: logger.WithComponent("audit"), now: time.Now}
}

// Add appends one entry to a log, creating the log if needed, and returns the
// entry's committed cursor.
func (s *Service) Add(ctx context.Context, ns, name string, in EntryInput) (appendstack.Cursor, error) {
	cursors, err := s.AddBatch(ctx, ns, name, []EntryInput{in})
	if err != nil {
		return appendstack.Cursor{}, err
	}
	return cursors[0], nil
}

// AddBatch appends entries in one transaction and returns their committed
// cursors in input order. Entries of a batch larger than the retention window
// are pruned by the time it commits and get no cursor.
func (s *Service) AddBatch(ctx context.Context, ns, name string, in []EntryInput) ([]appendstack.Cursor, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidArgument)
	}
	for i, e := range in {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidArgument, i, auditlog.ErrEmptyName)
		}
	}
	meta, err := s.rt.Registry().Ensure(ns, name)
	if err != nil {
		return nil, s.invalid(err)
	}
	start := time.Now()
	var last *txn.Txn[auditlog.Entry]
	outcome, err := s.rt.Engine().Update(ctx, ns, name, shapeOf(meta), func(tx *txn.Txn[auditlog.Entry]) error {
		last = tx
		lg := auditlog.Wrap(tx.Stack(), auditlog.WithPruner(tx.Stage), auditlog.WithClock(s.now))
		for _, e := range in {
			if _, err := lg.Add(e.Name, e.OID, e.Fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("audit.add failed", logpkg.Str("ns", ns), logpkg.Str("log", name), logpkg.Err(err))
		return nil, err
	}
	snap, version := last.Committed()
	cursors := newestCursors(snap, len(in))
	for range in {
		s.rt.Metrics().ObserveEntry(ns)
	}
	s.logger.Debug("audit.add",
		logpkg.Str("ns", ns), logpkg.Str("log", name), logpkg.Int("n", len(in)),
		logpkg.Str("outcome", outcome.String()), logpkg.Uint64("version", version),
		logpkg.Duration("dur", time.Since(start)))
	return cursors, nil
}

// newestCursors returns the cursors of the newest n items in chronological
// order.
func newestCursors[T any](snap appendstack.Snapshot[T], n int) []appendstack.Cursor {
	out := make([]appendstack.Cursor, n)
	i := n - 1
	for _, l := range snap.Layers {
		for idx := len(l.Items) - 1; idx >= 0 && i >= 0; idx-- {
			out[i] = appendstack.Cursor{Generation: l.Generation, Index: idx}
			i--
		}
		if i < 0 {
			break
		}
	}
	return out[i+1:]
}

// Newer returns the records of a log newer than q.After, newest first.
func (s *Service) Newer(ctx context.Context, ns, name string, q Query) ([]auditlog.Record, error) {
	filter, err := auditlog.CompileFilter(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: filter: %w", ErrInvalidArgument, err)
	}
	lg, err := s.open(ns, name)
	if err != nil || lg == nil {
		return nil, err
	}
	var out []auditlog.Record
	for r := range lg.NewerMatching(q.After, filter, q.OIDs...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// LatestCursor returns the log's latest cursor, or (0, 0) for a missing log.
func (s *Service) LatestCursor(ns, name string) (appendstack.Cursor, error) {
	lg, err := s.open(ns, name)
	if err != nil || lg == nil {
		return appendstack.Cursor{}, err
	}
	return lg.LatestCursor(), nil
}

// Head returns the cursor of the newest entry, if any.
func (s *Service) Head(ns, name string) (appendstack.Cursor, bool, error) {
	lg, err := s.open(ns, name)
	if err != nil || lg == nil {
		return appendstack.Cursor{}, false, err
	}
	c, ok := lg.Head()
	return c, ok, nil
}

// Layers describes the retained layers of a log, newest first.
func (s *Service) Layers(ns, name string) ([]LayerInfo, error) {
	snap, _, err := s.load(ns, name)
	if err != nil || snap == nil {
		return nil, err
	}
	out := make([]LayerInfo, len(snap.Layers))
	for i, l := range snap.Layers {
		out[i] = LayerInfo{Generation: l.Generation, Len: len(l.Items), Capacity: snap.LayerCapacity}
	}
	return out, nil
}

// Logs lists the logs of a namespace.
func (s *Service) Logs(ns string) ([]registry.Meta, error) {
	return s.rt.Registry().List(ns)
}

// Archived returns the archived layers of a log, oldest first.
func (s *Service) Archived(ns, name string) ([]appendstack.LayerState[auditlog.Entry], error) {
	if err := registry.ValidateNames(ns, name); err != nil {
		return nil, s.invalid(err)
	}
	return s.rt.Archive().List(ns, name)
}

// ExportArchive copies a namespace's archive into a bbolt file.
func (s *Service) ExportArchive(ctx context.Context, ns, path string) (int, error) {
	n, err := s.rt.Archive().Export(ctx, ns, path)
	if err != nil {
		return 0, err
	}
	s.logger.Info("archive exported", logpkg.Str("ns", ns), logpkg.Str("path", path), logpkg.Int("layers", n))
	return n, nil
}

// PurgeArchive deletes archived layers of a log older than generation before.
func (s *Service) PurgeArchive(ctx context.Context, ns, name string, before uint64) (int, error) {
	if err := registry.ValidateNames(ns, name); err != nil {
		return 0, s.invalid(err)
	}
	n, err := s.rt.Archive().Purge(ctx, ns, name, before, 0, 0)
	if err != nil {
		return n, err
	}
	s.logger.Info("archive purged", logpkg.Str("ns", ns), logpkg.Str("log", name), logpkg.Uint64("before", before), logpkg.Int("layers", n))
	return n, nil
}

// load returns the stored snapshot, or nil for a log never written.
func (s *Service) load(ns, name string) (*appendstack.Snapshot[auditlog.Entry], uint64, error) {
	if err := registry.ValidateNames(ns, name); err != nil {
		return nil, 0, s.invalid(err)
	}
	snap, version, err := s.rt.Engine().Load(ns, name)
	if errors.Is(err, txn.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return &snap, version, nil
}

func (s *Service) open(ns, name string) (*auditlog.Log, error) {
	snap, _, err := s.load(ns, name)
	if err != nil || snap == nil {
		return nil, err
	}
	st, err := appendstack.FromSnapshot(*snap)
	if err != nil {
		return nil, err
	}
	return auditlog.Wrap(st), nil
}

func (s *Service) invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

func shapeOf(m registry.Meta) txn.Shape {
	return txn.Shape{MaxLayers: m.MaxLayers, LayerCapacity: m.LayerCapacity}
}

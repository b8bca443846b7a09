package auditlog

import (
	"iter"
	"slices"
	"time"

	"github.com/rzbill/auditstack/internal/appendstack"
)

// Record is an entry positioned in the log.
type Record = appendstack.Item[Entry]

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithPruner installs the callback that receives layers rotated out of the log.
func WithPruner(fn appendstack.PruneFunc[Entry]) Option {
	return func(l *Log) { l.pruner = fn }
}

// Log is an audit log backed by a bounded stack of entries.
type Log struct {
	stack  *appendstack.Stack[Entry]
	now    func() time.Time
	pruner appendstack.PruneFunc[Entry]
}

// New creates an empty log.
func New(maxLayers, layerCapacity int, opts ...Option) (*Log, error) {
	st, err := appendstack.New[Entry](maxLayers, layerCapacity)
	if err != nil {
		return nil, err
	}
	return Wrap(st, opts...), nil
}

// Wrap builds a log over an existing stack, typically one owned by a
// transaction.
func Wrap(st *appendstack.Stack[Entry], opts ...Option) *Log {
	l := &Log{stack: st, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stack exposes the underlying stack.
func (l *Log) Stack() *appendstack.Stack[Entry] { return l.stack }

// Add appends a new entry and returns its cursor.
func (l *Log) Add(name, oid string, fields map[string]any) (appendstack.Cursor, error) {
	e, err := NewEntry(name, oid, fields, l.now())
	if err != nil {
		return appendstack.Cursor{}, err
	}
	if err := l.Append(e); err != nil {
		return appendstack.Cursor{}, err
	}
	c, _ := l.stack.Head()
	return c, nil
}

// Append pushes a prepared entry.
func (l *Log) Append(e Entry) error {
	if e.Name == "" {
		return ErrEmptyName
	}
	return l.stack.Push(e, l.pruner)
}

// Newer yields records appended after c, newest first. When oids is non-empty
// only records for those object ids are yielded.
func (l *Log) Newer(c appendstack.Cursor, oids ...string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for it := range l.stack.Newer(c) {
			if len(oids) > 0 && !slices.Contains(oids, it.Value.OID) {
				continue
			}
			if !yield(it) {
				return
			}
		}
	}
}

// NewerMatching yields records appended after c for which f matches.
// A nil filter matches everything.
func (l *Log) NewerMatching(c appendstack.Cursor, f *Filter, oids ...string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for it := range l.Newer(c, oids...) {
			if !f.Match(it) {
				continue
			}
			if !yield(it) {
				return
			}
		}
	}
}

// LatestCursor returns the generation of the newest layer and the number of
// entries in it.
func (l *Log) LatestCursor() appendstack.Cursor { return l.stack.LatestCursor() }

// Head returns the cursor of the newest entry, if any.
func (l *Log) Head() (appendstack.Cursor, bool) { return l.stack.Head() }

// Len reports the number of retained entries.
func (l *Log) Len() int { return l.stack.Len() }

// Package registry records the audit logs that exist in each namespace and the
// stack shape each one was created with.
package registry

import (
	"errors"
	"regexp"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/rzbill/auditstack/internal/config"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Get for an unknown log.
var ErrNotFound = errors.New("registry: log not found")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Meta holds log metadata.
type Meta struct {
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	MaxLayers     int    `json:"maxLayers"`
	LayerCapacity int    `json:"layerCapacity"`
	CreatedAtMs   int64  `json:"createdAtMs"`
}

// ValidateNames checks a namespace and log name pair.
func ValidateNames(namespace, name string) error {
	return validation.Errors{
		"namespace": validation.Validate(namespace, validation.Required, validation.Match(namePattern)),
		"name":      validation.Validate(name, validation.Required, validation.Match(namePattern)),
	}.Filter()
}

var metaPrefix = []byte("logmeta/")

// metaKey builds logmeta/{ns}/{name}.
func metaKey(ns, name string) []byte {
	k := metaNamespacePrefix(ns)
	k = append(k, name...)
	return k
}

func metaNamespacePrefix(ns string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(ns)+1)
	k = append(k, metaPrefix...)
	k = append(k, ns...)
	k = append(k, '/')
	return k
}

// Registry stores Meta records in Pebble.
type Registry struct {
	db       *pebblestore.DB
	defaults config.StackDefaults
	now      func() time.Time

	mu sync.Mutex
}

// New returns a registry that creates logs with the given default shape.
func New(db *pebblestore.DB, defaults config.StackDefaults) *Registry {
	return &Registry{db: db, defaults: defaults, now: time.Now}
}

// Get returns the metadata of a log.
func (r *Registry) Get(ns, name string) (Meta, error) {
	b, err := r.db.Get(metaKey(ns, name))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Ensure creates a log record if absent, returning the effective meta.
// Idempotent: the shape of an existing log is never changed.
func (r *Registry) Ensure(ns, name string) (Meta, error) {
	if err := ValidateNames(ns, name); err != nil {
		return Meta{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, err := r.Get(ns, name); err == nil {
		return m, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Meta{}, err
	}
	m := Meta{
		Namespace:     ns,
		Name:          name,
		MaxLayers:     r.defaults.MaxLayers,
		LayerCapacity: r.defaults.LayerCapacity,
		CreatedAtMs:   r.now().UnixMilli(),
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := r.db.Set(metaKey(ns, name), b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns every log of a namespace ordered by name.
func (r *Registry) List(ns string) ([]Meta, error) {
	var (
		out     []Meta
		scanErr error
	)
	for _, v := range r.db.Scan(metaNamespacePrefix(ns), &scanErr) {
		var m Meta
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, scanErr
}

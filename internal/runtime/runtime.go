package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/auditstack/internal/archive"
	"github.com/rzbill/auditstack/internal/auditlog"
	cfgpkg "github.com/rzbill/auditstack/internal/config"
	"github.com/rzbill/auditstack/internal/metrics"
	"github.com/rzbill/auditstack/internal/registry"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
	"github.com/rzbill/auditstack/internal/txn"
	"github.com/rzbill/auditstack/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	// Fsync overrides Config.Storage.Fsync when set.
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
	// Registry receives the Prometheus collectors. A private registry is
	// created when nil.
	Registry *prometheus.Registry
}

// Runtime wires storage, the transaction engine, the archive and metrics for
// a single-node instance.
type Runtime struct {
	mu       sync.RWMutex
	db       *pebblestore.DB
	config   cfgpkg.Config
	logger   log.Logger
	registry *registry.Registry
	engine   *txn.Engine[auditlog.Entry]
	archive  *archive.Store[auditlog.Entry]
	metrics  *metrics.Recorder
	prom     *prometheus.Registry
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg.Stack.MaxLayers == 0 {
		cfg = cfgpkg.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	prom := opts.Registry
	if prom == nil {
		prom = prometheus.NewRegistry()
	}
	rec := metrics.New(prom)

	fsync := opts.Fsync
	if fsync == pebblestore.FsyncModeUnspecified {
		fsync = pebblestore.ParseFsyncMode(cfg.Storage.Fsync)
	}
	interval := opts.FsyncInterval
	if interval == 0 {
		interval = cfg.Storage.FsyncInterval
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         fsync,
		FsyncInterval: interval,
		Metrics:       rec,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		db:       db,
		config:   cfg,
		logger:   logger,
		registry: registry.New(db, cfg.Stack),
		archive:  archive.NewStore[auditlog.Entry](db),
		metrics:  rec,
		prom:     prom,
	}
	engineOpts := txn.Options[auditlog.Entry]{
		DB:        db,
		Policy:    cfg.Commit,
		CacheSize: cfg.CacheSize,
		Metrics:   rec,
		Logger:    logger,
	}
	if cfg.Archive.Enabled {
		engineOpts.Archiver = rt.archive
	}
	rt.engine, err = txn.NewEngine(engineOpts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("runtime opened", log.Str("data_dir", opts.DataDir), log.Bool("archive", cfg.Archive.Enabled))
	return rt, nil
}

// Close flushes and closes underlying resources.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	var result error
	if err := r.db.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	r.db = nil
	return result
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// Registry returns the log registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Engine returns the transaction engine for audit entries.
func (r *Runtime) Engine() *txn.Engine[auditlog.Entry] { return r.engine }

// Archive returns the archive of pruned audit layers.
func (r *Runtime) Archive() *archive.Store[auditlog.Entry] { return r.archive }

// Metrics returns the Prometheus recorder.
func (r *Runtime) Metrics() *metrics.Recorder { return r.metrics }

// Gatherer returns the Prometheus registry holding the runtime's collectors.
func (r *Runtime) Gatherer() prometheus.Gatherer { return r.prom }

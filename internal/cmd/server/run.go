package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfgpkg "github.com/rzbill/auditstack/internal/config"
	"github.com/rzbill/auditstack/internal/runtime"
	grpcserver "github.com/rzbill/auditstack/internal/server/grpc"
	httpserver "github.com/rzbill/auditstack/internal/server/http"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
	logpkg "github.com/rzbill/auditstack/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = os.Getenv

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	// Logger overrides the process logger built from AUDITSTACK_LOG_*.
	Logger logpkg.Logger
}

// Run opens the runtime, starts the gRPC and HTTP servers and blocks until
// ctx is cancelled. An empty GRPCAddr disables the gRPC server.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := opts.Logger
	if procLogger == nil {
		cfg := &logpkg.Config{
			Level:  getenvDefault("AUDITSTACK_LOG_LEVEL", "info"),
			Format: getenvDefault("AUDITSTACK_LOG_FORMAT", "text"),
		}
		var err error
		procLogger, err = logpkg.ApplyConfig(cfg)
		if err != nil {
			lvl, _ := logpkg.ParseLevel(cfg.Level)
			procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl))
		}
		// Pebble logs through the standard library logger.
		logpkg.RedirectStdLog(procLogger)
	}

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
		Registry:      prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting auditstack server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
	)

	hsrv := httpserver.New(rt, procLogger)
	var gsrv *grpcserver.Server
	if opts.GRPCAddr != "" {
		gsrv = grpcserver.New(rt)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	if gsrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
				procLogger.Error("grpc server failed", logpkg.Err(err))
				errCh <- err
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-sctx.Done():
	case runErr = <-errCh:
	}
	// Stop transports before the deferred runtime close.
	stop()
	if gsrv != nil {
		gsrv.Close()
	}
	hsrv.Close()
	wg.Wait()
	return runErr
}

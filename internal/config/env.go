package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays AUDITSTACK_* environment variables onto cfg. Malformed
// values are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("AUDITSTACK_DEFAULT_NAMESPACE"); v != "" {
		cfg.DefaultNamespace = v
	}
	envInt("AUDITSTACK_STACK_MAX_LAYERS", &cfg.Stack.MaxLayers)
	envInt("AUDITSTACK_STACK_LAYER_CAPACITY", &cfg.Stack.LayerCapacity)
	envInt("AUDITSTACK_COMMIT_MAX_ATTEMPTS", &cfg.Commit.MaxAttempts)
	envDuration("AUDITSTACK_COMMIT_BASE_DELAY", &cfg.Commit.BaseDelay)
	envDuration("AUDITSTACK_COMMIT_MAX_DELAY", &cfg.Commit.MaxDelay)
	envInt("AUDITSTACK_CACHE_SIZE", &cfg.CacheSize)
	if v := os.Getenv("AUDITSTACK_FSYNC"); v != "" {
		cfg.Storage.Fsync = v
	}
	envDuration("AUDITSTACK_FSYNC_INTERVAL", &cfg.Storage.FsyncInterval)
	if v := os.Getenv("AUDITSTACK_ARCHIVE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Archive.Enabled = b
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

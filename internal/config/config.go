package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DefaultNamespace string        `json:"defaultNamespace" yaml:"defaultNamespace"`
	Stack            StackDefaults `json:"stack" yaml:"stack"`
	Commit           CommitPolicy  `json:"commit" yaml:"commit"`
	Archive          ArchiveConfig `json:"archive" yaml:"archive"`
	Storage          StorageConfig `json:"storage" yaml:"storage"`
	// CacheSize bounds the number of decoded log snapshots kept in memory.
	CacheSize int `json:"cacheSize" yaml:"cacheSize"`
}

// StackDefaults are applied to logs created without explicit limits.
type StackDefaults struct {
	MaxLayers     int `json:"maxLayers" yaml:"maxLayers"`
	LayerCapacity int `json:"layerCapacity" yaml:"layerCapacity"`
}

// CommitPolicy controls retries of transactions that fail to merge.
type CommitPolicy struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	BaseDelay   time.Duration `json:"baseDelay" yaml:"baseDelay"`
	MaxDelay    time.Duration `json:"maxDelay" yaml:"maxDelay"`
}

// ArchiveConfig toggles archiving of pruned layers.
type ArchiveConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StorageConfig selects the WAL sync policy: "always", "interval" or "never".
type StorageConfig struct {
	Fsync         string        `json:"fsync" yaml:"fsync"`
	FsyncInterval time.Duration `json:"fsyncInterval" yaml:"fsyncInterval"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DefaultNamespace: "default",
		Stack: StackDefaults{
			MaxLayers:     10,
			LayerCapacity: 100,
		},
		Commit: CommitPolicy{
			MaxAttempts: 5,
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    500 * time.Millisecond,
		},
		Archive:   ArchiveConfig{Enabled: true},
		Storage: StorageConfig{
			Fsync:         "interval",
			FsyncInterval: 5 * time.Millisecond,
		},
		CacheSize: 256,
	}
}

// Validate checks the configuration for values the runtime cannot work with.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultNamespace, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.Stack),
		validation.Field(&c.Commit),
		validation.Field(&c.Storage),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Fsync, validation.In("", "always", "interval", "never")),
		validation.Field(&s.FsyncInterval, validation.Min(time.Duration(0))),
	)
}

func (s StackDefaults) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.MaxLayers, validation.Required, validation.Min(1)),
		validation.Field(&s.LayerCapacity, validation.Required, validation.Min(1)),
	)
}

func (p CommitPolicy) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&p.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&p.MaxDelay, validation.Min(p.BaseDelay)),
	)
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

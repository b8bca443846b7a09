// Package config provides loading, environment overlay and validation for
// auditstack runtime configuration.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/auditstack.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	defer rt.Close()
package config

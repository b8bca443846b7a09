// Package runtime wires storage, the log registry, the transaction engine, the
// archive and metrics into a single-node auditstack instance.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	if err != nil { /* handle */ }
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
package runtime

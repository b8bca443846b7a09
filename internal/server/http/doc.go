// Package httpserver provides the REST gateway for auditstack: JSON endpoints
// to add and poll audit entries, an SSE tail, archive access and Prometheus
// metrics.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver

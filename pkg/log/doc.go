// Package log provides auditstack's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. It is backed by zerolog: the
// "text" format renders through zerolog.ConsoleWriter, "json" writes raw
// zerolog lines.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat("text"),
//	)
//	l = l.With(log.Component("server"), log.Str("ns", "default"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config. Tests use
// NewNop.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by Pebble) through
// a Logger.
package log

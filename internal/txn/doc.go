// Package txn stores appendstack snapshots in Pebble under optimistic
// concurrency control.
//
// A transaction starts from the stored snapshot and its version, mutates a
// private stack and commits. When another transaction committed first the
// engine merges the two with appendstack.Merge instead of failing; only a
// structural conflict (pruned history, configuration drift) surfaces as
// ErrConflict, which Update retries with backoff.
//
// Keyspace:
//
//	ns/{ns}/stack/{name}/s   framed record: version_be8 | msgpack(Snapshot)
//
// Layers pruned by a commit are handed to the Archiver and written in the same
// batch as the new state.
package txn

// Package archive keeps layers that rotated out of a stack's retention window.
//
// Layers are written by the transaction engine in the same Pebble batch that
// stores the new stack state, keyed by generation so a repeated write of the
// same layer is harmless:
//
//	ns/{ns}/archive/{log}/{gen_be8}   msgpack(LayerState)
//
// Export copies a namespace's archive into a standalone bbolt file for cold
// storage, one bucket per namespace with a nested bucket per log.
package archive

// Package appendstack implements a bounded, append-only stack of layers with
// automatic three-way merging for optimistic-concurrency storage engines.
//
// # Overview
//
// A Stack holds at most MaxLayers layers, newest first. Each Layer accepts up
// to LayerCapacity items and carries a generation number. When the current
// layer is full a new layer at generation+1 becomes current; once the stack
// holds more than MaxLayers layers the oldest ones are pruned and handed to an
// optional PruneFunc (the archival seam).
//
// Every item is addressed by a Cursor {Generation, Index}. Cursors increase
// strictly with every push, which makes "everything newer than X" queries a
// reverse scan that stops at the first item <= X.
//
//	s, _ := appendstack.New[string](10, 100)
//	_ = s.Push("a", nil)
//	for it := range s.Newer(appendstack.Origin) {
//	    _ = it.Value
//	}
//
// # Conflict resolution
//
// ResolveConflict takes three Snapshots (ancestor, committed, attempted) and
// replays the items the attempted snapshot added on top of the committed one.
// It fails with a *StructuralConflictError when the configurations differ or
// when the ancestor's newest layer has already been pruned from either side.
// The function is pure: inputs are never mutated and the result never shares
// storage with them.
//
// A Stack is not safe for concurrent use; each transaction works on its own
// copy built with FromSnapshot.
package appendstack

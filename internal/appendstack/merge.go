package appendstack

// MergeResult is the outcome of a successful three-way merge.
type MergeResult[T any] struct {
	// Snapshot is the state to commit in place of the attempted one.
	Snapshot Snapshot[T]
	// Dropped holds the layers, oldest first, that the final retention trim
	// removed from the replayed state. Storage engines that archive pruned
	// history use it; ResolveConflict discards it.
	Dropped []LayerState[T]
}

// ResolveConflict merges two concurrent versions of a stack. old is the state
// both transactions started from, committed is the state another transaction
// already stored, attempted is the state this transaction tried to store.
// The items attempted added on top of old are replayed onto committed.
func ResolveConflict[T any](old, committed, attempted Snapshot[T]) (Snapshot[T], error) {
	res, err := Merge(old, committed, attempted)
	if err != nil {
		return Snapshot[T]{}, err
	}
	return res.Snapshot, nil
}

// Merge is ResolveConflict that also reports the layers lost to the final trim.
func Merge[T any](old, committed, attempted Snapshot[T]) (MergeResult[T], error) {
	if old.MaxLayers != committed.MaxLayers || old.MaxLayers != attempted.MaxLayers {
		return MergeResult[T]{}, conflict(ReasonConfigMismatch, "max layers %d/%d/%d",
			old.MaxLayers, committed.MaxLayers, attempted.MaxLayers)
	}
	if old.LayerCapacity != committed.LayerCapacity || old.LayerCapacity != attempted.LayerCapacity {
		return MergeResult[T]{}, conflict(ReasonConfigMismatch, "layer capacity %d/%d/%d",
			old.LayerCapacity, committed.LayerCapacity, attempted.LayerCapacity)
	}
	for _, side := range []struct {
		name string
		snap Snapshot[T]
	}{{"old", old}, {"committed", committed}, {"attempted", attempted}} {
		if err := side.snap.Validate(); err != nil {
			return MergeResult[T]{}, conflict(ReasonMalformed, "%s: %v", side.name, err)
		}
	}

	branch := old.Latest()
	if branch.Generation < committed.Earliest().Generation {
		return MergeResult[T]{}, conflict(ReasonHistoryPruned, "committed obsoletes old at generation %d", branch.Generation)
	}
	if branch.Generation < attempted.Earliest().Generation {
		return MergeResult[T]{}, conflict(ReasonHistoryPruned, "attempted obsoletes old at generation %d", branch.Generation)
	}
	if attempted.Latest().Generation < branch.Generation {
		return MergeResult[T]{}, conflict(ReasonMalformed, "attempted generation %d is behind old generation %d",
			attempted.Latest().Generation, branch.Generation)
	}

	delta, err := added(branch, attempted)
	if err != nil {
		return MergeResult[T]{}, err
	}
	return replay(committed, delta), nil
}

// added returns the items attempted holds beyond the branch layer, oldest first.
// Segments are collected newest layer first and concatenated in reverse.
func added[T any](branch LayerState[T], attempted Snapshot[T]) ([]T, error) {
	var segments [][]T
	total := 0
	for _, l := range attempted.Layers {
		if l.Generation < branch.Generation {
			break
		}
		seg := l.Items
		if l.Generation == branch.Generation {
			if len(l.Items) < len(branch.Items) {
				return nil, conflict(ReasonMalformed, "attempted layer %d holds %d items, old held %d",
					l.Generation, len(l.Items), len(branch.Items))
			}
			seg = l.Items[len(branch.Items):]
		}
		segments = append(segments, seg)
		total += len(seg)
	}
	delta := make([]T, 0, total)
	for i := len(segments) - 1; i >= 0; i-- {
		delta = append(delta, segments[i]...)
	}
	return delta, nil
}

// replay pushes delta onto a copy of committed with rotation but no pruning,
// then keeps the newest MaxLayers layers.
func replay[T any](committed Snapshot[T], delta []T) MergeResult[T] {
	// oldest first while appending
	chron := make([]LayerState[T], len(committed.Layers))
	for i, l := range committed.Layers {
		chron[len(chron)-1-i] = LayerState[T]{Generation: l.Generation, Items: append([]T(nil), l.Items...)}
	}
	for _, item := range delta {
		cur := &chron[len(chron)-1]
		if len(cur.Items) >= committed.LayerCapacity {
			chron = append(chron, LayerState[T]{Generation: cur.Generation + 1})
			cur = &chron[len(chron)-1]
		}
		cur.Items = append(cur.Items, item)
	}

	res := MergeResult[T]{Snapshot: Snapshot[T]{
		MaxLayers:     committed.MaxLayers,
		LayerCapacity: committed.LayerCapacity,
	}}
	cut := 0
	if len(chron) > committed.MaxLayers {
		cut = len(chron) - committed.MaxLayers
		res.Dropped = chron[:cut:cut]
	}
	kept := chron[cut:]
	res.Snapshot.Layers = make([]LayerState[T], len(kept))
	for i, l := range kept {
		res.Snapshot.Layers[len(kept)-1-i] = l
	}
	return res
}

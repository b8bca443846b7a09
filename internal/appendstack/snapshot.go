package appendstack

import "fmt"

// LayerState is the plain form of a layer: its generation and its items in
// chronological order.
type LayerState[T any] struct {
	Generation uint64 `msgpack:"g" json:"generation"`
	Items      []T    `msgpack:"i" json:"items"`
}

// Snapshot is the plain, storable form of a Stack. Layers are newest first.
// This is the shape storage engines exchange with ResolveConflict.
type Snapshot[T any] struct {
	MaxLayers     int             `msgpack:"ml" json:"maxLayers"`
	LayerCapacity int             `msgpack:"lc" json:"layerCapacity"`
	Layers        []LayerState[T] `msgpack:"l" json:"layers"`
}

// Validate checks the stack invariants: positive configuration, 1..MaxLayers
// layers, no layer over capacity and generations decreasing by exactly one
// from each layer to the next.
func (s Snapshot[T]) Validate() error {
	if s.MaxLayers <= 0 || s.LayerCapacity <= 0 {
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, ErrInvalidConfig)
	}
	if len(s.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrMalformedSnapshot)
	}
	if len(s.Layers) > s.MaxLayers {
		return fmt.Errorf("%w: %d layers exceed max %d", ErrMalformedSnapshot, len(s.Layers), s.MaxLayers)
	}
	for i, l := range s.Layers {
		if len(l.Items) > s.LayerCapacity {
			return fmt.Errorf("%w: layer %d holds %d items, capacity %d", ErrMalformedSnapshot, l.Generation, len(l.Items), s.LayerCapacity)
		}
		if i > 0 && s.Layers[i-1].Generation != l.Generation+1 {
			return fmt.Errorf("%w: generation %d follows %d", ErrMalformedSnapshot, s.Layers[i-1].Generation, l.Generation)
		}
	}
	return nil
}

// Latest returns the newest layer.
func (s Snapshot[T]) Latest() LayerState[T] { return s.Layers[0] }

// Earliest returns the oldest retained layer.
func (s Snapshot[T]) Earliest() LayerState[T] { return s.Layers[len(s.Layers)-1] }

// Head returns the cursor of the newest item, or false when every layer is
// empty.
func (s Snapshot[T]) Head() (Cursor, bool) {
	for _, l := range s.Layers {
		if n := len(l.Items); n > 0 {
			return Cursor{Generation: l.Generation, Index: n - 1}, true
		}
	}
	return Cursor{}, false
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot[T]) Clone() Snapshot[T] {
	out := Snapshot[T]{MaxLayers: s.MaxLayers, LayerCapacity: s.LayerCapacity}
	if s.Layers != nil {
		out.Layers = make([]LayerState[T], len(s.Layers))
		for i, l := range s.Layers {
			out.Layers[i] = LayerState[T]{Generation: l.Generation, Items: append([]T(nil), l.Items...)}
		}
	}
	return out
}

// Snapshot returns the plain form of the stack. Item slices are copied.
func (s *Stack[T]) Snapshot() Snapshot[T] {
	out := Snapshot[T]{
		MaxLayers:     s.maxLayers,
		LayerCapacity: s.layerCapacity,
		Layers:        make([]LayerState[T], len(s.layers)),
	}
	for i, l := range s.layers {
		out.Layers[i] = LayerState[T]{Generation: l.generation, Items: l.Items()}
	}
	return out
}

// FromSnapshot rebuilds a stack from its plain form without aliasing snap.
func FromSnapshot[T any](snap Snapshot[T]) (*Stack[T], error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	s := &Stack[T]{
		maxLayers:     snap.MaxLayers,
		layerCapacity: snap.LayerCapacity,
		layers:        make([]*Layer[T], len(snap.Layers)),
	}
	for i, ls := range snap.Layers {
		s.layers[i] = &Layer[T]{
			capacity:   snap.LayerCapacity,
			generation: ls.Generation,
			items:      append([]T(nil), ls.Items...),
		}
	}
	return s, nil
}

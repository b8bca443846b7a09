package appendstack

import (
	"errors"
	"iter"
)

// PruneFunc receives each layer dropped by the retention bound. items is a
// private copy in chronological order.
type PruneFunc[T any] func(generation uint64, items []T) error

// Item is a stored value together with its position in the stack.
type Item[T any] struct {
	Generation uint64
	Index      int
	Value      T
}

// Cursor returns the item's position.
func (it Item[T]) Cursor() Cursor {
	return Cursor{Generation: it.Generation, Index: it.Index}
}

// Stack is an append-only stack of layers, newest first, holding at most
// maxLayers layers of layerCapacity items each.
type Stack[T any] struct {
	maxLayers     int
	layerCapacity int
	layers        []*Layer[T]
}

// New returns a stack with a single empty layer at generation 0.
func New[T any](maxLayers, layerCapacity int) (*Stack[T], error) {
	if maxLayers <= 0 || layerCapacity <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Stack[T]{
		maxLayers:     maxLayers,
		layerCapacity: layerCapacity,
		layers:        []*Layer[T]{NewLayer[T](layerCapacity, 0)},
	}, nil
}

func (s *Stack[T]) MaxLayers() int     { return s.maxLayers }
func (s *Stack[T]) LayerCapacity() int { return s.layerCapacity }

// NumLayers returns the number of retained layers.
func (s *Stack[T]) NumLayers() int { return len(s.layers) }

// Len returns the number of retained items.
func (s *Stack[T]) Len() int {
	n := 0
	for _, l := range s.layers {
		n += l.Len()
	}
	return n
}

// Push appends item to the current layer, rotating to a new layer when the
// current one is full. Layers beyond the retention bound are dropped, oldest
// first, and passed to onPrune when it is non-nil. An onPrune error is returned
// as is; the stack has already been trimmed at that point.
func (s *Stack[T]) Push(item T, onPrune PruneFunc[T]) error {
	if _, err := s.layers[0].Append(item); err != nil {
		if !errors.Is(err, ErrLayerFull) {
			return err
		}
		next := NewLayer[T](s.layerCapacity, s.layers[0].generation+1)
		if _, err := next.Append(item); err != nil {
			return err
		}
		layers := make([]*Layer[T], 0, len(s.layers)+1)
		layers = append(layers, next)
		s.layers = append(layers, s.layers...)
	}
	if len(s.layers) <= s.maxLayers {
		return nil
	}

	pruned := s.layers[s.maxLayers:]
	kept := make([]*Layer[T], s.maxLayers)
	copy(kept, s.layers[:s.maxLayers])
	s.layers = kept
	if onPrune == nil {
		return nil
	}
	for i := len(pruned) - 1; i >= 0; i-- {
		if err := onPrune(pruned[i].generation, pruned[i].Items()); err != nil {
			return err
		}
	}
	return nil
}

// All yields every item newest first: layers in order, then positions downwards.
func (s *Stack[T]) All() iter.Seq[Item[T]] {
	return func(yield func(Item[T]) bool) {
		for _, l := range s.layers {
			for idx, v := range l.All() {
				if !yield(Item[T]{Generation: l.generation, Index: idx, Value: v}) {
					return
				}
			}
		}
	}
}

// Newer yields the items strictly after c, newest first. The scan stops at the
// first item that is <= c.
func (s *Stack[T]) Newer(c Cursor) iter.Seq[Item[T]] {
	return func(yield func(Item[T]) bool) {
		for _, l := range s.layers {
			bound := -1
			switch {
			case l.generation < c.Generation:
				return
			case l.generation == c.Generation:
				bound = c.Index
			}
			for idx, v := range l.After(bound) {
				if !yield(Item[T]{Generation: l.generation, Index: idx, Value: v}) {
					return
				}
			}
			if l.generation == c.Generation {
				return
			}
		}
	}
}

// LatestCursor returns (current generation, items in the current layer): the
// position one past the newest item. Newer(LatestCursor()) is empty.
func (s *Stack[T]) LatestCursor() Cursor {
	cur := s.layers[0]
	return Cursor{Generation: cur.generation, Index: cur.Len()}
}

// Head returns the cursor of the newest item, or false on an empty stack.
func (s *Stack[T]) Head() (Cursor, bool) {
	for _, l := range s.layers {
		if l.Len() > 0 {
			return Cursor{Generation: l.generation, Index: l.Len() - 1}, true
		}
	}
	return Cursor{}, false
}

// Earliest returns the generation of the oldest retained layer.
func (s *Stack[T]) Earliest() uint64 {
	return s.layers[len(s.layers)-1].generation
}

package appendstack

import "iter"

// Layer is an append-only batch of at most capacity items tagged with a generation.
type Layer[T any] struct {
	capacity   int
	generation uint64
	items      []T
}

// NewLayer returns an empty layer.
func NewLayer[T any](capacity int, generation uint64) *Layer[T] {
	return &Layer[T]{capacity: capacity, generation: generation}
}

func (l *Layer[T]) Capacity() int      { return l.capacity }
func (l *Layer[T]) Generation() uint64 { return l.generation }
func (l *Layer[T]) Len() int           { return len(l.items) }
func (l *Layer[T]) Full() bool         { return len(l.items) >= l.capacity }

// Items returns a copy of the items in chronological order.
func (l *Layer[T]) Items() []T {
	return append([]T(nil), l.items...)
}

// Append adds item at the next position and returns that position.
func (l *Layer[T]) Append(item T) (int, error) {
	if l.Full() {
		return 0, ErrLayerFull
	}
	l.items = append(l.items, item)
	return len(l.items) - 1, nil
}

// All yields (position, item) pairs from the newest position down to 0.
func (l *Layer[T]) All() iter.Seq2[int, T] {
	return l.After(-1)
}

// After yields the items with a position greater than bound, newest first.
func (l *Layer[T]) After(bound int) iter.Seq2[int, T] {
	if bound < -1 {
		bound = -1
	}
	return func(yield func(int, T) bool) {
		for at := len(l.items) - 1; at > bound; at-- {
			if !yield(at, l.items[at]) {
				return
			}
		}
	}
}

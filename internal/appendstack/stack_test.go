package appendstack

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"testing"
)

type pruneCall struct {
	gen   uint64
	items []string
}

func newStringStack(t *testing.T, maxLayers, capacity int) *Stack[string] {
	t.Helper()
	s, err := New[string](maxLayers, capacity)
	if err != nil {
		t.Fatalf("new stack: %v", err)
	}
	return s
}

func collect[T any](seq iter.Seq[Item[T]]) []Item[T] {
	var out []Item[T]
	for it := range seq {
		out = append(out, it)
	}
	return out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	for _, tc := range [][2]int{{0, 1}, {1, 0}, {-1, 5}} {
		if _, err := New[int](tc[0], tc[1]); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("New(%d, %d): want ErrInvalidConfig, got %v", tc[0], tc[1], err)
		}
	}
}

func TestNewStackStartsAtGenerationZero(t *testing.T) {
	s := newStringStack(t, 3, 4)
	if s.NumLayers() != 1 || s.Len() != 0 {
		t.Fatalf("want one empty layer, got layers=%d len=%d", s.NumLayers(), s.Len())
	}
	if c := s.LatestCursor(); c != (Cursor{Generation: 0, Index: 0}) {
		t.Fatalf("want cursor 0:0, got %v", c)
	}
	if _, ok := s.Head(); ok {
		t.Fatalf("empty stack must have no head")
	}
}

func TestConcreteRotationAndPruneScenario(t *testing.T) {
	s := newStringStack(t, 2, 2)
	var calls []pruneCall
	onPrune := func(gen uint64, items []string) error {
		calls = append(calls, pruneCall{gen, items})
		return nil
	}

	for _, v := range []string{"a", "b", "c"} {
		if err := s.Push(v, onPrune); err != nil {
			t.Fatalf("push %q: %v", v, err)
		}
	}
	snap := s.Snapshot()
	if len(snap.Layers) != 2 || snap.Layers[0].Generation != 1 || snap.Layers[1].Generation != 0 {
		t.Fatalf("unexpected layers after c: %+v", snap.Layers)
	}
	if !slices.Equal(snap.Layers[0].Items, []string{"c"}) || !slices.Equal(snap.Layers[1].Items, []string{"a", "b"}) {
		t.Fatalf("unexpected items after c: %+v", snap.Layers)
	}
	if c := s.LatestCursor(); c != (Cursor{Generation: 1, Index: 1}) {
		t.Fatalf("want latest cursor 1:1, got %v", c)
	}

	newer := collect(s.Newer(Cursor{Generation: 0, Index: 1}))
	if len(newer) != 1 || newer[0].Generation != 1 || newer[0].Index != 0 || newer[0].Value != "c" {
		t.Fatalf("want only (1,0,c), got %+v", newer)
	}
	if len(calls) != 0 {
		t.Fatalf("no prune expected yet, got %+v", calls)
	}

	if err := s.Push("d", onPrune); err != nil {
		t.Fatalf("push d: %v", err)
	}
	snap = s.Snapshot()
	if len(snap.Layers) != 2 || snap.Layers[0].Generation != 2 || snap.Layers[1].Generation != 1 {
		t.Fatalf("unexpected layers after d: %+v", snap.Layers)
	}
	if len(calls) != 1 || calls[0].gen != 0 || !slices.Equal(calls[0].items, []string{"a", "b"}) {
		t.Fatalf("want one prune of (0, [a b]), got %+v", calls)
	}
}

func TestPushWithoutPrunerDropsSilently(t *testing.T) {
	s := newStringStack(t, 1, 1)
	for _, v := range []string{"a", "b", "c"} {
		if err := s.Push(v, nil); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	got := collect(s.All())
	if len(got) != 1 || got[0].Value != "c" || got[0].Generation != 2 {
		t.Fatalf("want only (2,0,c), got %+v", got)
	}
}

func TestBoundsHoldForAnyPushSequence(t *testing.T) {
	for _, cfg := range [][2]int{{1, 1}, {2, 3}, {3, 2}, {5, 7}} {
		maxLayers, capacity := cfg[0], cfg[1]
		s := newStringStack(t, maxLayers, capacity)
		pruned := 0
		for i := 0; i < 60; i++ {
			if err := s.Push(fmt.Sprint(i), func(uint64, []string) error { pruned++; return nil }); err != nil {
				t.Fatalf("push: %v", err)
			}
			snap := s.Snapshot()
			if len(snap.Layers) > maxLayers {
				t.Fatalf("cfg %v: %d layers retained", cfg, len(snap.Layers))
			}
			for _, l := range snap.Layers {
				if len(l.Items) > capacity {
					t.Fatalf("cfg %v: layer %d holds %d items", cfg, l.Generation, len(l.Items))
				}
			}
			if err := snap.Validate(); err != nil {
				t.Fatalf("cfg %v: invariant broken: %v", cfg, err)
			}
		}
		// every generation beyond the retained window was pruned exactly once
		wantPruned := int(s.Earliest())
		if pruned != wantPruned {
			t.Fatalf("cfg %v: want %d prunes, got %d", cfg, wantPruned, pruned)
		}
	}
}

func TestIterationIsMonotonic(t *testing.T) {
	s := newStringStack(t, 4, 3)
	for i := 0; i < 10; i++ {
		_ = s.Push(fmt.Sprint(i), nil)
	}
	items := collect(s.All())
	if len(items) != 10 {
		t.Fatalf("want 10 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Cursor().Compare(items[i].Cursor()) <= 0 {
			t.Fatalf("order broken at %d: %v then %v", i, items[i-1].Cursor(), items[i].Cursor())
		}
	}
	if items[0].Value != "9" || items[len(items)-1].Value != "0" {
		t.Fatalf("want newest first, got %q..%q", items[0].Value, items[len(items)-1].Value)
	}
}

func TestNewerBoundaries(t *testing.T) {
	s := newStringStack(t, 3, 2)
	for i := 0; i < 5; i++ {
		_ = s.Push(fmt.Sprint(i), nil)
	}
	if got := collect(s.Newer(s.LatestCursor())); len(got) != 0 {
		t.Fatalf("newer than latest cursor must be empty, got %+v", got)
	}
	if got := collect(s.Newer(Origin)); len(got) != 5 {
		t.Fatalf("newer than origin must yield everything, got %d", len(got))
	}
	head, ok := s.Head()
	if !ok || head != (Cursor{Generation: 2, Index: 0}) {
		t.Fatalf("want head 2:0, got %v %v", head, ok)
	}
	if got := collect(s.Newer(head)); len(got) != 0 {
		t.Fatalf("newer than head must be empty, got %+v", got)
	}
	got := collect(s.Newer(Cursor{Generation: 1, Index: 0}))
	if len(got) != 2 || got[0].Value != "4" || got[1].Value != "3" {
		t.Fatalf("want [4 3], got %+v", got)
	}
}

func TestNewerStopsEarly(t *testing.T) {
	s := newStringStack(t, 3, 2)
	for i := 0; i < 6; i++ {
		_ = s.Push(fmt.Sprint(i), nil)
	}
	n := 0
	for range s.Newer(Origin) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("consumer break not honoured: %d", n)
	}
}

func TestPrunerErrorPropagates(t *testing.T) {
	s := newStringStack(t, 1, 1)
	_ = s.Push("a", nil)
	boom := errors.New("cold storage down")
	err := s.Push("b", func(uint64, []string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want callback error, got %v", err)
	}
	if s.NumLayers() != 1 {
		t.Fatalf("stack must still honour the bound, got %d layers", s.NumLayers())
	}
}

func TestPrunedItemsAreCopies(t *testing.T) {
	s := newStringStack(t, 1, 2)
	_ = s.Push("a", nil)
	_ = s.Push("b", nil)
	var got []string
	_ = s.Push("c", func(_ uint64, items []string) error { got = items; return nil })
	got[0] = "mutated"
	if !slices.Equal(got, []string{"mutated", "b"}) {
		t.Fatalf("unexpected pruned items %v", got)
	}
	if s.Snapshot().Layers[0].Items[0] != "c" {
		t.Fatalf("surviving layer changed")
	}
}

func TestSnapshotRoundTripDoesNotAlias(t *testing.T) {
	s := newStringStack(t, 3, 2)
	for _, v := range []string{"a", "b", "c"} {
		_ = s.Push(v, nil)
	}
	snap := s.Snapshot()
	restored, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	snap.Layers[0].Items[0] = "mutated"
	if err := restored.Push("d", nil); err != nil {
		t.Fatalf("push: %v", err)
	}
	got := collect(restored.All())
	if len(got) != 4 || got[1].Value != "c" {
		t.Fatalf("restored stack aliased its snapshot: %+v", got)
	}
	if restored.LatestCursor() != (Cursor{Generation: 1, Index: 2}) {
		t.Fatalf("unexpected latest cursor %v", restored.LatestCursor())
	}
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	cases := map[string]Snapshot[string]{
		"no layers":      {MaxLayers: 2, LayerCapacity: 2},
		"bad config":     {MaxLayers: 0, LayerCapacity: 2, Layers: []LayerState[string]{{}}},
		"over capacity":  {MaxLayers: 2, LayerCapacity: 1, Layers: []LayerState[string]{{Items: []string{"a", "b"}}}},
		"too many":       {MaxLayers: 1, LayerCapacity: 1, Layers: []LayerState[string]{{Generation: 1}, {Generation: 0}}},
		"generation gap": {MaxLayers: 3, LayerCapacity: 1, Layers: []LayerState[string]{{Generation: 3}, {Generation: 1}}},
	}
	for name, snap := range cases {
		if _, err := FromSnapshot(snap); !errors.Is(err, ErrMalformedSnapshot) {
			t.Fatalf("%s: want ErrMalformedSnapshot, got %v", name, err)
		}
	}
}

func TestCursorParseAndCompare(t *testing.T) {
	c, err := ParseCursor("3:14")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != (Cursor{Generation: 3, Index: 14}) || c.String() != "3:14" {
		t.Fatalf("unexpected cursor %v", c)
	}
	if _, err := ParseCursor("nope"); err == nil {
		t.Fatalf("expected parse error")
	}
	if Origin.Compare(Cursor{}) != -1 || (Cursor{Generation: 1}).Compare(Cursor{Index: 99}) != 1 {
		t.Fatalf("compare broken")
	}
}

func TestSnapshotHeadMatchesStack(t *testing.T) {
	s := newStringStack(t, 3, 2)
	if _, ok := s.Snapshot().Head(); ok {
		t.Fatalf("empty snapshot has no head")
	}
	for i := 0; i < 5; i++ {
		_ = s.Push(fmt.Sprint(i), nil)
		want, _ := s.Head()
		got, ok := s.Snapshot().Head()
		if !ok || got != want {
			t.Fatalf("push %d: snapshot head %v, stack head %v", i, got, want)
		}
	}
}

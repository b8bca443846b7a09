package appendstack

import (
	"fmt"
	"strconv"
	"strings"
)

// Cursor addresses an item by layer generation and position inside that layer
// (0 = oldest in the layer). Cursors order lexicographically.
type Cursor struct {
	Generation uint64 `json:"generation"`
	Index      int    `json:"index"`
}

// Origin sorts before every item a stack can hold, so Newer(Origin) yields everything.
var Origin = Cursor{Generation: 0, Index: -1}

// Compare returns -1, 0 or 1.
func (c Cursor) Compare(other Cursor) int {
	switch {
	case c.Generation < other.Generation:
		return -1
	case c.Generation > other.Generation:
		return 1
	case c.Index < other.Index:
		return -1
	case c.Index > other.Index:
		return 1
	}
	return 0
}

// String renders the cursor as "generation:index".
func (c Cursor) String() string {
	return strconv.FormatUint(c.Generation, 10) + ":" + strconv.Itoa(c.Index)
}

// ParseCursor parses the "generation:index" form produced by String.
func ParseCursor(s string) (Cursor, error) {
	gen, idx, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Cursor{}, fmt.Errorf("invalid cursor %q: want generation:index", s)
	}
	g, err := strconv.ParseUint(gen, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor generation %q: %w", gen, err)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor index %q: %w", idx, err)
	}
	return Cursor{Generation: g, Index: i}, nil
}

package auditlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/auditstack/internal/appendstack"
)

func TestCompileFilterEmpty(t *testing.T) {
	f, err := CompileFilter("  ")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Match(Record{}))
	assert.Equal(t, "", f.String())
}

func TestCompileFilterRejectsBadExpressions(t *testing.T) {
	_, err := CompileFilter("name ==")
	assert.Error(t, err)
	_, err = CompileFilter("unknown_var == 1")
	assert.Error(t, err)
}

func TestNewerMatching(t *testing.T) {
	lg, err := New(10, 2, WithClock(fixedClock(1000)))
	require.NoError(t, err)
	_, err = lg.Add("content-added", "a", map[string]any{"path": "/docs/1"})
	require.NoError(t, err)
	_, err = lg.Add("content-removed", "b", map[string]any{"path": "/docs/2"})
	require.NoError(t, err)
	_, err = lg.Add("content-added", "c", map[string]any{"path": "/img/3"})
	require.NoError(t, err)

	cases := []struct {
		expr string
		want []string
	}{
		{`name == "content-added"`, []string{"c", "a"}},
		{`payload.path.startsWith("/docs")`, []string{"b", "a"}},
		{`generation == 1`, []string{"c"}},
		{`index == 0 && ts_ms <= now_ms`, []string{"c", "a"}},
		{`oid in ["a", "b"]`, []string{"b", "a"}},
		{`payload.missing == 1`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			f, err := CompileFilter(tc.expr)
			require.NoError(t, err)
			var got []string
			for r := range lg.NewerMatching(appendstack.Origin, f) {
				got = append(got, r.Value.OID)
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.expr, f.String())
		})
	}
}

func TestNewerMatchingCombinesOIDs(t *testing.T) {
	lg, err := New(10, 4)
	require.NoError(t, err)
	for _, oid := range []string{"a", "b", "a"} {
		_, err := lg.Add("evt", oid, nil)
		require.NoError(t, err)
	}
	f, err := CompileFilter(`index >= 1`)
	require.NoError(t, err)
	var got []int
	for r := range lg.NewerMatching(appendstack.Origin, f, "a") {
		got = append(got, r.Index)
	}
	assert.Equal(t, []int{2}, got)
}

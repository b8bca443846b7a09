package auditlog

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over audit records. Expressions see:
//
//	name, oid        string
//	payload          decoded JSON payload
//	ts_ms, now_ms    int (unix milliseconds)
//	generation       int
//	index            int
//
// A nil *Filter matches every record.
type Filter struct {
	expr string
	prog cel.Program
	now  func() time.Time
}

// CompileFilter parses and type-checks expr. An empty expression yields a nil
// filter.
func CompileFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("oid", cel.StringType),
		cel.Variable("payload", cel.DynType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("generation", cel.IntType),
		cel.Variable("index", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog, now: time.Now}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against a record. Evaluation errors and
// non-boolean results count as no match.
func (f *Filter) Match(r Record) bool {
	if f == nil {
		return true
	}
	var payload any
	_ = json.Unmarshal(r.Value.Payload, &payload)
	out, _, err := f.prog.Eval(map[string]any{
		"name":       r.Value.Name,
		"oid":        r.Value.OID,
		"payload":    payload,
		"ts_ms":      r.Value.TimestampMs,
		"generation": int64(r.Generation),
		"index":      int64(r.Index),
		"now_ms":     f.now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

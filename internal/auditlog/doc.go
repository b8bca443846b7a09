// Package auditlog records named audit events against object ids on top of a
// bounded appendstack.Stack.
//
// Entries carry a JSON payload built from caller supplied fields. Readers poll
// with a cursor: Newer yields every entry appended after it, newest first,
// optionally narrowed to a set of object ids or a CEL expression.
//
//	lg, _ := auditlog.New(10, 100)
//	_, _ = lg.Add("content-added", "oid-1", map[string]any{"path": "/a"})
//	for it := range lg.Newer(appendstack.Origin, "oid-1") {
//	    fmt.Println(it.Cursor(), it.Value.Name)
//	}
package auditlog

// Package auditsvc implements the audit facade consumed by the HTTP and gRPC
// transports. Logs are located by namespace and name and created on first
// write; reads of a log that does not exist yet see an empty log.
//
// Example:
//
//	svc := auditsvc.New(rt)
//	c, _ := svc.Add(ctx, "default", "content", auditsvc.EntryInput{Name: "added", OID: "42"})
//	recs, _ := svc.Newer(ctx, "default", "content", auditsvc.Query{After: appendstack.Origin})
package auditsvc

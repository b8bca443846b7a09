// Package client provides the `auditstack` command-line client.
//
// The CLI talks to the auditstack HTTP gateway to add and read audit
// entries from a terminal.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads AUDITSTACK_HTTP
// and defaults to http://127.0.0.1:8080.
//
// Usage
//
//	auditstack log add --namespace default --log orders \
//	    --name order.created --oid o-1 --field total=12
//
//	auditstack log newer --log orders --after 3:4 --oid o-1 --limit 10
//	auditstack log newer --log orders --filter 'name == "order.created"'
//
//	auditstack log cursor --log orders
//	auditstack log tail --log orders
//
//	auditstack archive list --log orders
//	auditstack archive purge --log orders --before 12 --confirm
//	auditstack archive export --data-dir ./data --out orders.bolt
//
// Notes
//
//   - newer prints entries newest first; cursors are generation:index.
//   - tail prints one JSON object per line until interrupted.
//   - export opens the data directory itself; stop the server first.
package client

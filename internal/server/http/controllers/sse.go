package controllers

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rzbill/auditstack/internal/appendstack"
	"github.com/rzbill/auditstack/internal/auditlog"
	auditsvc "github.com/rzbill/auditstack/internal/services/audit"
	logpkg "github.com/rzbill/auditstack/pkg/log"
)

const defaultTailPoll = 250 * time.Millisecond

// sseSink writes records as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one record as an SSE data event with the cursor as event id.
func (s sseSink) Send(rec auditlog.Record) error {
	b, err := json.Marshal(toRecordJSON(rec))
	if err != nil {
		return err
	}
	for _, part := range [][]byte{[]byte("id: "), []byte(rec.Cursor().String()), []byte("\ndata: "), b, []byte("\n\n")} {
		if _, err := s.w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the HTTP response writer if it supports flushing.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleTail streams entries as they are added, oldest first, by polling the
// log. Without a cursor it starts after the current newest entry; the
// Last-Event-ID header resumes a dropped stream.
func (c *AuditController) handleTail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ns, name := vars["ns"], vars["log"]

	start := appendstack.Origin
	if head, ok, err := c.svc.Head(ns, name); err != nil {
		writeServiceError(w, err)
		return
	} else if ok {
		start = head
	}
	after, err := parseCursor(r, start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cursor")
		return
	}
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		if after, err = appendstack.ParseCursor(id); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Last-Event-ID")
			return
		}
	}
	poll := defaultTailPoll
	if ms, err := strconv.Atoi(r.URL.Query().Get("poll_ms")); err == nil && ms > 0 {
		poll = time.Duration(ms) * time.Millisecond
	}
	q := auditsvc.Query{OIDs: parseOIDs(r), Filter: r.URL.Query().Get("filter")}
	if _, err := auditlog.CompileFilter(q.Filter); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w}
	sink.Flush()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		q.After = after
		recs, err := c.svc.Newer(r.Context(), ns, name, q)
		if err != nil {
			if r.Context().Err() == nil {
				c.logger.Warn("tail read failed", logpkg.Str("ns", ns), logpkg.Str("log", name), logpkg.Err(err))
			}
			return
		}
		slices.Reverse(recs)
		for _, rec := range recs {
			if err := sink.Send(rec); err != nil {
				return
			}
		}
		if len(recs) > 0 {
			after = recs[len(recs)-1].Cursor()
			sink.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

package controllers

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/rzbill/auditstack/internal/appendstack"
	"github.com/rzbill/auditstack/internal/auditlog"
)

// addReq represents a request to add one or more entries to a log.
type addReq struct {
	Name    string                `json:"name"`
	OID     string                `json:"oid"`
	Fields  map[string]any        `json:"fields"`
	Entries []auditEntryInputJSON `json:"entries"`
}

type auditEntryInputJSON struct {
	Name   string         `json:"name"`
	OID    string         `json:"oid"`
	Fields map[string]any `json:"fields"`
}

// addResp lists the cursors assigned to the added entries.
type addResp struct {
	Cursors []string `json:"cursors"`
}

// recordJSON represents an audit entry in a list response.
type recordJSON struct {
	Cursor     string              `json:"cursor"`
	Generation uint64              `json:"generation"`
	Index      int                 `json:"index"`
	Name       string              `json:"name"`
	OID        string              `json:"oid"`
	Payload    jsoniter.RawMessage `json:"payload"`
	TsMs       int64               `json:"ts_ms"`
}

func toRecordJSON(r auditlog.Record) recordJSON {
	return recordJSON{
		Cursor:     r.Cursor().String(),
		Generation: r.Generation,
		Index:      r.Index,
		Name:       r.Value.Name,
		OID:        r.Value.OID,
		Payload:    r.Value.Payload,
		TsMs:       r.Value.TimestampMs,
	}
}

// cursorResp reports a log's positions.
type cursorResp struct {
	Latest     string `json:"latest"`
	Generation uint64 `json:"generation"`
	Index      int    `json:"index"`
	Head       string `json:"head,omitempty"`
}

// archivedLayerJSON is an archived layer with its entries oldest first.
type archivedLayerJSON struct {
	Generation uint64       `json:"generation"`
	Entries    []recordJSON `json:"entries"`
}

func toArchivedLayerJSON(l appendstack.LayerState[auditlog.Entry]) archivedLayerJSON {
	out := archivedLayerJSON{Generation: l.Generation, Entries: make([]recordJSON, len(l.Items))}
	for i, e := range l.Items {
		out.Entries[i] = toRecordJSON(auditlog.Record{Generation: l.Generation, Index: i, Value: e})
	}
	return out
}

package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/rzbill/auditstack/internal/appendstack"
	auditsvc "github.com/rzbill/auditstack/internal/services/audit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeStatusJSON writes data with a non-200 status.
func writeStatusJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, auditsvc.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseCursor reads "after=g:i" or the "gen" and "idx" pair. With neither
// present it returns def.
func parseCursor(r *http.Request, def appendstack.Cursor) (appendstack.Cursor, error) {
	q := r.URL.Query()
	if after := q.Get("after"); after != "" {
		return appendstack.ParseCursor(after)
	}
	gen, idx := q.Get("gen"), q.Get("idx")
	if gen == "" && idx == "" {
		return def, nil
	}
	g, err := strconv.ParseUint(gen, 10, 64)
	if err != nil {
		return appendstack.Cursor{}, err
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return appendstack.Cursor{}, err
	}
	return appendstack.Cursor{Generation: g, Index: i}, nil
}

// parseOIDs accepts repeated "oid" parameters and comma separated lists.
func parseOIDs(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["oid"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

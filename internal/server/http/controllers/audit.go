package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rzbill/auditstack/internal/appendstack"
	auditsvc "github.com/rzbill/auditstack/internal/services/audit"
	logpkg "github.com/rzbill/auditstack/pkg/log"
)

// AuditController exposes audit logs under /v1/ns/{ns}/logs.
type AuditController struct {
	svc    *auditsvc.Service
	logger logpkg.Logger
}

// NewAuditController creates a new audit controller.
func NewAuditController(svc *auditsvc.Service, logger logpkg.Logger) *AuditController {
	return &AuditController{svc: svc, logger: logger}
}

// RegisterRoutes registers the audit routes with the given router.
func (c *AuditController) RegisterRoutes(r *mux.Router) {
	ns := r.PathPrefix("/v1/ns/{ns}").Subrouter()
	ns.HandleFunc("/logs", c.handleListLogs).Methods(http.MethodGet)
	ns.HandleFunc("/logs/{log}/entries", c.handleAdd).Methods(http.MethodPost)
	ns.HandleFunc("/logs/{log}/entries", c.handleNewer).Methods(http.MethodGet)
	ns.HandleFunc("/logs/{log}/cursor", c.handleCursor).Methods(http.MethodGet)
	ns.HandleFunc("/logs/{log}/layers", c.handleLayers).Methods(http.MethodGet)
	ns.HandleFunc("/logs/{log}/archive", c.handleArchive).Methods(http.MethodGet)
	ns.HandleFunc("/logs/{log}/archive", c.handlePurge).Methods(http.MethodDelete)
	ns.HandleFunc("/logs/{log}/tail", c.handleTail).Methods(http.MethodGet)
}

func (c *AuditController) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.svc.Logs(mux.Vars(r)["ns"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}

// handleAdd accepts either a single entry or {"entries": [...]}.
func (c *AuditController) handleAdd(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req addReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in := make([]auditsvc.EntryInput, 0, len(req.Entries)+1)
	if req.Name != "" {
		in = append(in, auditsvc.EntryInput{Name: req.Name, OID: req.OID, Fields: req.Fields})
	}
	for _, e := range req.Entries {
		in = append(in, auditsvc.EntryInput{Name: e.Name, OID: e.OID, Fields: e.Fields})
	}
	cursors, err := c.svc.AddBatch(r.Context(), vars["ns"], vars["log"], in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := addResp{Cursors: make([]string, len(cursors))}
	for i, cur := range cursors {
		resp.Cursors[i] = cur.String()
	}
	writeStatusJSON(w, http.StatusCreated, resp)
}

func (c *AuditController) handleNewer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	after, err := parseCursor(r, appendstack.Origin)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cursor")
		return
	}
	recs, err := c.svc.Newer(r.Context(), vars["ns"], vars["log"], auditsvc.Query{
		After:  after,
		OIDs:   parseOIDs(r),
		Filter: r.URL.Query().Get("filter"),
		Limit:  parseLimit(r.URL.Query().Get("limit")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items := make([]recordJSON, len(recs))
	for i, rec := range recs {
		items[i] = toRecordJSON(rec)
	}
	writeJSON(w, map[string]any{"entries": items})
}

func (c *AuditController) handleCursor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	latest, err := c.svc.LatestCursor(vars["ns"], vars["log"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := cursorResp{Latest: latest.String(), Generation: latest.Generation, Index: latest.Index}
	head, ok, err := c.svc.Head(vars["ns"], vars["log"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ok {
		resp.Head = head.String()
	}
	writeJSON(w, resp)
}

func (c *AuditController) handleLayers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	layers, err := c.svc.Layers(vars["ns"], vars["log"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if layers == nil {
		layers = []auditsvc.LayerInfo{}
	}
	writeJSON(w, map[string]any{"layers": layers})
}

func (c *AuditController) handleArchive(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	layers, err := c.svc.Archived(vars["ns"], vars["log"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]archivedLayerJSON, len(layers))
	for i, l := range layers {
		out[i] = toArchivedLayerJSON(l)
	}
	writeJSON(w, map[string]any{"layers": out})
}

// handlePurge deletes archived layers older than the "before" generation.
func (c *AuditController) handlePurge(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	before, err := strconv.ParseUint(r.URL.Query().Get("before"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid before generation")
		return
	}
	n, err := c.svc.PurgeArchive(r.Context(), vars["ns"], vars["log"], before)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]int{"purged": n})
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/audit"
)

// AuditHandlers serves the audit trail: search and export
type AuditHandlers struct {
	recorder *audit.DBRecorder
}

// NewAuditHandlers creates a new AuditHandlers
func NewAuditHandlers(recorder *audit.DBRecorder) *AuditHandlers {
	return &AuditHandlers{recorder: recorder}
}

// RegisterRoutes registers audit routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit", h.Search).Methods("GET")
	router.HandleFunc("/audit/export", h.Export).Methods("GET")
}

// Search returns audit events matching the query filters, newest first.
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFromQuery(w, r)
	if !ok {
		return
	}

	events, err := h.recorder.Search(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Export streams matching audit events in the requested format
// (json, ndjson, or csv).
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFromQuery(w, r)
	if !ok {
		return
	}

	events, err := h.recorder.Search(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	format := audit.ExportFormat(r.URL.Query().Get("format"))
	data, err := audit.Export(events, format)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case audit.ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case audit.ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// filterFromQuery parses audit search filters from query parameters.
func filterFromQuery(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	var filter audit.Filter

	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid actor_id")
			return filter, false
		}
		filter.ActorID = &id
	}
	if raw := q.Get("target_user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid target_user_id")
			return filter, false
		}
		filter.TargetUserID = &id
	}
	filter.OrgType = q.Get("org_type")
	if raw := q.Get("org_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "invalid org_id")
			return filter, false
		}
		filter.OrgID = &id
	}
	for _, et := range q["event_type"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(et))
	}
	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid start time, want RFC 3339")
			return filter, false
		}
		filter.StartTime = &start
	}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid end time, want RFC 3339")
			return filter, false
		}
		filter.EndTime = &end
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, "invalid limit")
			return filter, false
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			badRequest(w, "invalid offset")
			return filter, false
		}
		filter.Offset = offset
	}
	return filter, true
}

package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/services"
)

const maxAuditPage = 500

// ReportHandler serves usage reports and the audit trail.
type ReportHandler struct {
	reports *services.ReportService
	events  db.AuditCollection
}

// NewReportHandler creates a report handler.
func NewReportHandler(reports *services.ReportService, events db.AuditCollection) *ReportHandler {
	return &ReportHandler{reports: reports, events: events}
}

// Summary returns the dashboard summary of the target lubricentro.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	sum, err := h.reports.Summary(r.Context(), claims, middleware.TargetLubricentro(r, claims))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// AuditEvents lists audit events newest first. Admins only see their own
// lubricentro; a superadmin sees every event unless ?lubricentro_id= is set.
func (h *ReportHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	if claims.Role != models.RoleSuperAdmin && claims.Role != models.RoleAdmin {
		writeError(w, r, services.ErrForbidden)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}
	filter := models.AuditFilter{
		LubricentroID: middleware.TargetLubricentro(r, claims),
		Type:          models.EventType(r.URL.Query().Get("type")),
		Limit:         int64(limit),
	}
	if claims.Role != models.RoleSuperAdmin && filter.LubricentroID == "" {
		writeError(w, r, services.ErrForbidden)
		return
	}

	events, err := h.events.FindAuditEvents(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and database reachability.
func Health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ok", "database": "ok"}
		status := http.StatusOK
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				resp["status"], resp["database"] = "degraded", err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}

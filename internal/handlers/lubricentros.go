package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/services"
)

// EntitlementEvaluator answers dry-run entitlement questions.
type EntitlementEvaluator interface {
	Evaluate(ctx context.Context, req entitlement.Request) (entitlement.Result, error)
}

// LubricentroHandler serves the caller's lubricentro and the superadmin
// back office.
type LubricentroHandler struct {
	svc     *services.LubricentroService
	checker EntitlementEvaluator
}

// NewLubricentroHandler creates a lubricentro handler.
func NewLubricentroHandler(svc *services.LubricentroService, checker EntitlementEvaluator) *LubricentroHandler {
	return &LubricentroHandler{svc: svc, checker: checker}
}

// Plans lists the subscription catalog.
func (h *LubricentroHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Catalog().Plans())
}

// Current returns the caller's lubricentro.
func (h *LubricentroHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Get(r.Context(), claims, middleware.TargetLubricentro(r, claims))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// UpdateCurrent edits the caller's lubricentro profile.
func (h *LubricentroHandler) UpdateCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var upd services.LubricentroUpdate
	if !decodeBody(w, r, &upd) {
		return
	}
	l, err := h.svc.UpdateProfile(r.Context(), claims, middleware.TargetLubricentro(r, claims), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Entitlements reports whether the caller could perform ?action= now,
// without recording anything.
func (h *LubricentroHandler) Entitlements(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	action := models.Action(r.URL.Query().Get("action"))
	if action == "" {
		action = models.ActionCreateService
	}
	switch action {
	case models.ActionCreateService, models.ActionCreateUser, models.ActionAdminAction, models.ActionViewReports:
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Unknown action", Field: "action", Reason: "validation_failed"})
		return
	}

	res, err := h.checker.Evaluate(r.Context(), entitlement.Request{
		LubricentroID: middleware.TargetLubricentro(r, claims),
		Action:        action,
		Actor:         claims,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// List returns all lubricentros, optionally filtered by ?status=.
func (h *LubricentroHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), claims, models.LubricentroStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get returns one lubricentro by id.
func (h *LubricentroHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ActivateRequest starts a subscription.
type ActivateRequest struct {
	PlanID      string             `json:"plan_id"`
	RenewalType models.RenewalType `json:"renewal_type"`
}

// Activate starts a paid subscription.
func (h *LubricentroHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req ActivateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := h.svc.Activate(r.Context(), claims, chi.URLParam(r, "id"), req.PlanID, req.RenewalType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DeactivateRequest blocks a lubricentro.
type DeactivateRequest struct {
	Reason string `json:"reason"`
}

// Deactivate blocks a lubricentro.
func (h *LubricentroHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req DeactivateRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Deactivate(r.Context(), claims, chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExtendTrialRequest extends a trial by Days.
type ExtendTrialRequest struct {
	Days int `json:"days"`
}

// ExtendTrial extends a lubricentro's trial.
func (h *LubricentroHandler) ExtendTrial(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req ExtendTrialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := h.svc.ExtendTrial(r.Context(), claims, chi.URLParam(r, "id"), req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// PaymentRequest records a payment. Date accepts the same formats as
// service dates.
type PaymentRequest struct {
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
	PlanID    string  `json:"plan_id"`
}

// RecordPayment appends a payment to a lubricentro.
func (h *LubricentroHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := services.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.RecordPayment(r.Context(), claims, chi.URLParam(r, "id"), models.Payment{
		Amount:    req.Amount,
		Date:      date,
		Method:    req.Method,
		Reference: req.Reference,
		PlanID:    req.PlanID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ChangePlanRequest switches plans.
type ChangePlanRequest struct {
	PlanID string `json:"plan_id"`
}

// ChangePlan moves an active lubricentro to another plan.
func (h *LubricentroHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req ChangePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := h.svc.ChangePlan(r.Context(), claims, chi.URLParam(r, "id"), req.PlanID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ResetUsage zeroes every lubricentro's monthly counter.
func (h *LubricentroHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	n, err := h.svc.ResetMonthlyUsage(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"modified": n, "at": time.Now().UTC()})
}

// ExpireTrials deactivates lubricentros whose trial ended.
func (h *LubricentroHandler) ExpireTrials(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	ids, err := h.svc.ExpireTrials(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expired": ids})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/services"
)

// oilChangeInput accepts service_date in any format ParseDate understands.
type oilChangeInput struct {
	models.OilChange
	ServiceDate string `json:"service_date"`
}

func (in oilChangeInput) toModel() (models.OilChange, error) {
	oc := in.OilChange
	date, err := services.ParseDate(in.ServiceDate)
	if err != nil {
		return oc, err
	}
	oc.ServiceDate = date
	return oc, nil
}

// OilChangeHandler serves oil change records.
type OilChangeHandler struct {
	svc *services.OilChangeService
}

// NewOilChangeHandler creates an oil change handler.
func NewOilChangeHandler(svc *services.OilChangeService) *OilChangeHandler {
	return &OilChangeHandler{svc: svc}
}

// OilChangeList is one page of records.
type OilChangeList struct {
	Items []models.OilChange `json:"items"`
	Total int64              `json:"total"`
	Limit int64              `json:"limit"`
	Skip  int64              `json:"skip"`
}

// List returns records filtered by ?plate=, ?from=, ?to=, ?limit= and ?skip=.
func (h *OilChangeHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.OilChangeFilter{
		LubricentroID: middleware.TargetLubricentro(r, claims),
		Plate:         q.Get("plate"),
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if q.Get(name) == "" {
			continue
		}
		t, err := services.ParseDate(q.Get(name))
		if err != nil {
			writeError(w, r, &services.ValidationError{Field: name, Message: "fecha inválida"})
			return
		}
		*dst = &t
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	skip, err := queryInt(r, "skip")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.Limit, filter.Skip = int64(limit), int64(skip)

	items, total, err := h.svc.List(r.Context(), claims, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.OilChange{}
	}
	writeJSON(w, http.StatusOK, OilChangeList{Items: items, Total: total, Limit: filter.Limit, Skip: filter.Skip})
}

// Create records a new oil change. The entitlement check happens in the service.
func (h *OilChangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var in oilChangeInput
	if !decodeBody(w, r, &in) {
		return
	}
	oc, err := in.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), claims, middleware.TargetLubricentro(r, claims), oc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get returns one record.
func (h *OilChangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	oc, err := h.svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, oc)
}

// Update replaces the editable fields of a record.
func (h *OilChangeHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var in oilChangeInput
	if !decodeBody(w, r, &in) {
		return
	}
	oc, err := in.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), claims, chi.URLParam(r, "id"), oc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a record.
func (h *OilChangeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), claims, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upcoming lists records whose next service falls within ?days=.
func (h *OilChangeHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.svc.Upcoming(r.Context(), claims, middleware.TargetLubricentro(r, claims), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.OilChange{}
	}
	writeJSON(w, http.StatusOK, items)
}

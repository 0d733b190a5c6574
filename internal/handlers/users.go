package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/services"
)

// UserHandler manages the users of a lubricentro.
type UserHandler struct {
	svc *services.UserService
}

// NewUserHandler creates a user handler.
func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List returns the users of the target lubricentro.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	users, err := h.svc.List(r.Context(), claims, middleware.TargetLubricentro(r, claims))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns one user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	user, err := h.svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create adds a user to the target lubricentro.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req models.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.svc.Create(r.Context(), claims, middleware.TargetLubricentro(r, claims), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// UpdateStatusRequest changes a user's status.
type UpdateStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

// UpdateStatus activates or deactivates a user.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateStatus(r.Context(), claims, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// UpdateRole changes a user's role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateRole(r.Context(), claims, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete removes a user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

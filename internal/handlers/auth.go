package handlers

import (
	"net/http"

	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/services"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	users        *services.UserService
	lubricentros *services.LubricentroService
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(users *services.UserService, lubricentros *services.LubricentroService) *AuthHandler {
	return &AuthHandler{
		users:        users,
		lubricentros: lubricentros,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register signs up a new lubricentro and its owner, then logs the owner in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	_, owner, err := h.lubricentros.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.users.Login(r.Context(), owner.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Me returns the current user and their lubricentro.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}

	user, err := h.users.Me(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := struct {
		User        *models.User        `json:"user"`
		Lubricentro *models.Lubricentro `json:"lubricentro,omitempty"`
	}{User: user}
	if user.LubricentroID != "" {
		if resp.Lubricentro, err = h.lubricentros.Get(r.Context(), claims, user.LubricentroID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangePasswordRequest is the body of a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), claims, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

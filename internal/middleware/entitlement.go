package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/models"
)

// LubricentroQueryParam lets a superadmin choose the lubricentro to act on.
const LubricentroQueryParam = "lubricentro_id"

// EntitlementChecker decides gated actions.
type EntitlementChecker interface {
	Check(ctx context.Context, req entitlement.Request) (entitlement.Result, error)
}

// TargetLubricentro returns the lubricentro a request acts on: the caller's
// own, or for a superadmin the one named in the query string.
func TargetLubricentro(r *http.Request, claims *models.Claims) string {
	if claims.Role == models.RoleSuperAdmin {
		return r.URL.Query().Get(LubricentroQueryParam)
	}
	return claims.LubricentroID
}

// RequireEntitlement runs the entitlement check for action before the
// handler. Rejections answer 403 with the decision as body.
func RequireEntitlement(checker EntitlementChecker, action models.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}

			res, err := checker.Check(r.Context(), entitlement.Request{
				LubricentroID: TargetLubricentro(r, claims),
				Action:        action,
				Actor:         claims,
			})
			if err != nil {
				log.WithError(err).WithField("action", action).Error("entitlement check failed")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !res.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/ukydev/lubricentro/internal/requestid"
)

// RequestID propagates X-Request-ID, generating one when the client sent none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestid.Header)
		if rid == "" || len(rid) > 128 {
			rid = requestid.New()
		}
		w.Header().Set(requestid.Header, rid)
		next.ServeHTTP(w, r.WithContext(requestid.NewContext(r.Context(), rid)))
	})
}

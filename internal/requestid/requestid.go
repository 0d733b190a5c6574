// Package requestid carries the per-request correlation id through contexts.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const key contextKey = "request_id"

// Header is the HTTP header used to propagate the id.
const Header = "X-Request-ID"

// New returns a fresh request id.
func New() string {
	return uuid.NewString()
}

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key, id)
}

// FromContext returns the request id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

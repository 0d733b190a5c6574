// Package services implements the tenant, user and oil change operations on
// top of the document store. Each call is one or two store round trips with
// light input coercion; gated writes go through the entitlement checker first.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/models"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
)

// ValidationError is a user-facing rejection of bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// EntitlementError carries a rejected entitlement decision.
type EntitlementError struct {
	Result entitlement.Result
}

func (e *EntitlementError) Error() string {
	return "entitlement rejected: " + string(e.Result.Reason)
}

// Auditor records audit events. Implementations must not block.
type Auditor interface {
	Info(ctx context.Context, eventType models.EventType, actor *models.Claims, lubricentroID, message string, metadata map[string]interface{})
	SystemError(ctx context.Context, actor *models.Claims, lubricentroID, operation string, err error)
}

// Gate decides whether a gated write may proceed.
type Gate interface {
	Check(ctx context.Context, req entitlement.Request) (entitlement.Result, error)
}

// Credentials hashes passwords and issues tokens.
type Credentials interface {
	HashPassword(password string) (string, error)
	CheckPassword(password, hash string) bool
	ValidatePassword(password string) error
	ValidateEmail(email string) error
	GenerateToken(user *models.User) (string, error)
	GenerateRefreshToken() (string, error)
}

type nopAuditor struct{}

func (nopAuditor) Info(context.Context, models.EventType, *models.Claims, string, string, map[string]interface{}) {
}
func (nopAuditor) SystemError(context.Context, *models.Claims, string, string, error) {}

type base struct {
	audit Auditor
	gate  Gate
	now   func() time.Time
}

// Option configures a service.
type Option func(*base)

// WithAuditor records mutations and failures.
func WithAuditor(a Auditor) Option {
	return func(b *base) {
		if a != nil {
			b.audit = a
		}
	}
}

// WithGate enables entitlement checks on gated writes.
func WithGate(g Gate) Option {
	return func(b *base) { b.gate = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(opts []Option) base {
	b := base{audit: nopAuditor{}, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// check runs the entitlement gate for action. A nil gate allows everything.
func (b *base) check(ctx context.Context, actor *models.Claims, lubricentroID string, action models.Action) error {
	if b.gate == nil {
		return nil
	}
	res, err := b.gate.Check(ctx, entitlement.Request{
		LubricentroID: lubricentroID,
		Action:        action,
		Actor:         actor,
	})
	if err != nil {
		b.audit.SystemError(ctx, actor, lubricentroID, "entitlement check", err)
		return fmt.Errorf("entitlement check: %w", err)
	}
	if !res.Allowed {
		return &EntitlementError{Result: res}
	}
	return nil
}

// fail audits an unexpected store error and wraps it.
func (b *base) fail(ctx context.Context, actor *models.Claims, lubricentroID, operation string, err error) error {
	b.audit.SystemError(ctx, actor, lubricentroID, operation, err)
	return fmt.Errorf("%s: %w", operation, err)
}

// authorizeTenant allows superadmins everywhere and everyone else only in
// their own lubricentro.
func authorizeTenant(actor *models.Claims, lubricentroID string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if actor.Role == models.RoleSuperAdmin {
		return nil
	}
	if lubricentroID == "" || actor.LubricentroID != lubricentroID {
		return ErrForbidden
	}
	return nil
}

func requireRole(actor *models.Claims, roles ...models.Role) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanPtr(s *string) {
	if s != nil {
		*s = clean(*s)
	}
}

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/metrics"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
)

// TenantReader loads tenants.
type TenantReader interface {
	FindLubricentroByID(ctx context.Context, id string) (*models.Lubricentro, error)
}

// UserReader loads users.
type UserReader interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuditRecorder receives rejected decisions. Implementations must not block.
type AuditRecorder interface {
	ValidationFailed(ctx context.Context, actor *models.Claims, lubricentroID, reason string, metadata map[string]interface{})
}

// Request asks whether Actor may perform Action for LubricentroID.
type Request struct {
	LubricentroID string
	Action        models.Action
	Actor         *models.Claims
}

// Checker loads the current state and applies Decide.
type Checker struct {
	tenants TenantReader
	users   UserReader
	catalog subscription.Catalog
	audit   AuditRecorder
	now     func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithUsers makes the checker reload the acting user so that deactivations and
// role changes apply before the token expires.
func WithUsers(users UserReader) Option {
	return func(c *Checker) { c.users = users }
}

// WithAudit records rejections.
func WithAudit(a AuditRecorder) Option {
	return func(c *Checker) { c.audit = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a checker over tenants and catalog.
func NewChecker(tenants TenantReader, catalog subscription.Catalog, opts ...Option) *Checker {
	c := &Checker{
		tenants: tenants,
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate returns the decision without recording it. Store failures other
// than a missing document are returned as errors.
func (c *Checker) Evaluate(ctx context.Context, req Request) (Result, error) {
	in := Input{
		Action:  req.Action,
		Actor:   req.Actor,
		Catalog: c.catalog,
		Now:     c.now(),
	}

	if req.Actor != nil && c.users != nil && req.Actor.UserID != "" {
		user, err := c.users.FindUserByID(ctx, req.Actor.UserID)
		switch {
		case err == nil:
			in.User = user
		case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrInvalidID):
			in.User = &models.User{Status: models.UserInactive, Role: req.Actor.Role}
		default:
			return Result{}, fmt.Errorf("load acting user: %w", err)
		}
	}

	if req.LubricentroID != "" {
		tenant, err := c.tenants.FindLubricentroByID(ctx, req.LubricentroID)
		switch {
		case err == nil:
			in.Tenant = tenant
		case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrInvalidID):
		default:
			return Result{}, fmt.Errorf("load lubricentro %s: %w", req.LubricentroID, err)
		}
	}

	return Decide(in), nil
}

// Check evaluates the request, counts the decision and audits rejections.
func (c *Checker) Check(ctx context.Context, req Request) (Result, error) {
	res, err := c.Evaluate(ctx, req)
	if err != nil {
		return Result{}, err
	}

	metrics.EntitlementDecisions.WithLabelValues(string(req.Action), strconv.FormatBool(res.Allowed), string(res.Reason)).Inc()

	if !res.Allowed && c.audit != nil {
		c.audit.ValidationFailed(ctx, req.Actor, req.LubricentroID, string(res.Reason), map[string]interface{}{
			"action":           string(req.Action),
			"suggested_action": string(res.SuggestedAction),
			"services_used":    res.ServicesUsed,
			"services_limit":   res.ServicesLimit,
			"active_users":     res.ActiveUsers,
			"users_limit":      res.UsersLimit,
		})
	}
	return res, nil
}

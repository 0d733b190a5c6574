// Package api assembles the HTTP routes of the service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/lubricentro/internal/handlers"
	"github.com/ukydev/lubricentro/internal/metrics"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/requestid"
)

// RateWindow is the window RateLimitPerWindow applies to.
const RateWindow = time.Minute

// Handlers groups the resource handlers mounted by the router.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Lubricentros *handlers.LubricentroHandler
	Users        *handlers.UserHandler
	OilChanges   *handlers.OilChangeHandler
	Reports      *handlers.ReportHandler
	Health       http.HandlerFunc
}

// Options configures the cross-cutting middleware.
type Options struct {
	Tokens             middleware.TokenValidator
	Checker            middleware.EntitlementChecker
	Limiter            *middleware.RateLimitMiddleware
	RateLimitPerWindow int
	FrontendOrigin     string
	Logger             log.FieldLogger
}

// NewRouter wires every route behind request ids, access logging, rate
// limiting and authentication, wrapped in CORS.
func NewRouter(h Handlers, opts Options) http.Handler {
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewRateLimitMiddleware()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(opts.Limiter.RateLimit(opts.RateLimitPerWindow, RateWindow))
	r.Use(middleware.NewAuthMiddleware(opts.Tokens).Authenticate)

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", h.Lubricentros.Plans)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Auth.Login)
			r.Post("/register", h.Auth.Register)
			r.Get("/me", h.Auth.Me)
			r.Post("/password", h.Auth.ChangePassword)
		})

		r.Route("/lubricentros/current", func(r chi.Router) {
			r.Get("/", h.Lubricentros.Current)
			r.With(middleware.RequirePermission(models.ActionAdminAction)).Put("/", h.Lubricentros.UpdateCurrent)
			r.Get("/entitlements", h.Lubricentros.Entitlements)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequirePermission(models.ActionAdminAction))
			r.Get("/", h.Users.List)
			r.Post("/", h.Users.Create)
			r.Get("/{id}", h.Users.Get)
			r.Put("/{id}/status", h.Users.UpdateStatus)
			r.Put("/{id}/role", h.Users.UpdateRole)
			r.Delete("/{id}", h.Users.Delete)
		})

		r.Route("/oil-changes", func(r chi.Router) {
			r.Get("/", h.OilChanges.List)
			r.Post("/", h.OilChanges.Create)
			r.Get("/upcoming", h.OilChanges.Upcoming)
			r.Get("/{id}", h.OilChanges.Get)
			r.Put("/{id}", h.OilChanges.Update)
			r.With(middleware.RequirePermission(models.ActionAdminAction)).Delete("/{id}", h.OilChanges.Delete)
		})

		r.With(middleware.RequireEntitlement(opts.Checker, models.ActionViewReports)).
			Get("/reports/summary", h.Reports.Summary)
		r.With(middleware.RequirePermission(models.ActionAdminAction)).
			Get("/audit-events", h.Reports.AuditEvents)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleSuperAdmin))
			r.Get("/lubricentros", h.Lubricentros.List)
			r.Get("/lubricentros/{id}", h.Lubricentros.Get)
			r.Post("/lubricentros/{id}/activate", h.Lubricentros.Activate)
			r.Post("/lubricentros/{id}/deactivate", h.Lubricentros.Deactivate)
			r.Post("/lubricentros/{id}/extend-trial", h.Lubricentros.ExtendTrial)
			r.Post("/lubricentros/{id}/payments", h.Lubricentros.RecordPayment)
			r.Put("/lubricentros/{id}/plan", h.Lubricentros.ChangePlan)
			r.Post("/usage/reset", h.Lubricentros.ResetUsage)
			r.Post("/trials/expire", h.Lubricentros.ExpireTrials)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{opts.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", requestid.Header},
		ExposedHeaders:   []string{"Content-Length", requestid.Header},
		AllowCredentials: opts.FrontendOrigin != "*",
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
	return c.Handler(r)
}

// Package app wires configuration, storage, auditing and services into a
// runnable application shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/lubricentro/internal/api"
	"github.com/ukydev/lubricentro/internal/audit"
	"github.com/ukydev/lubricentro/internal/auth"
	"github.com/ukydev/lubricentro/internal/config"
	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/handlers"
	"github.com/ukydev/lubricentro/internal/middleware"
	"github.com/ukydev/lubricentro/internal/services"
	"github.com/ukydev/lubricentro/internal/subscription"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stores are the collections the application runs on.
type Stores struct {
	Lubricentros db.LubricentroCollection
	Users        db.UserCollection
	OilChanges   db.OilChangeCollection
	Audit        db.AuditCollection
	Pinger       handlers.Pinger
}

// App holds the wired services.
type App struct {
	Config       *config.Config
	Catalog      subscription.Catalog
	Creds        *auth.Service
	Audit        *audit.Logger
	Checker      *entitlement.Checker
	Lubricentros *services.LubricentroService
	Users        *services.UserService
	OilChanges   *services.OilChangeService
	Reports      *services.ReportService
	Limiter      *middleware.RateLimitMiddleware

	stores Stores
	client *mongo.Client
}

// NewPublisher returns the audit broker selected by cfg, or nil for none.
func NewPublisher(cfg *config.Config) (audit.Publisher, error) {
	switch cfg.AuditBroker {
	case config.BrokerMQTT:
		return audit.NewMQTTPublisher(cfg.MQTTBrokerURL, cfg.MQTTTopicPrefix)
	case config.BrokerAMQP:
		return audit.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		return nil, nil
	}
}

// New wires the services on top of stores.
func New(cfg *config.Config, stores Stores, opts ...audit.Option) (*App, error) {
	catalog, err := subscription.LoadCatalog(cfg.PlansFile)
	if err != nil {
		return nil, err
	}
	creds, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return nil, err
	}

	auditLog := audit.NewLogger(stores.Audit, append([]audit.Option{audit.WithTimeout(cfg.AuditTimeout)}, opts...)...)
	checker := entitlement.NewChecker(stores.Lubricentros, catalog,
		entitlement.WithUsers(stores.Users),
		entitlement.WithAudit(auditLog),
	)
	common := []services.Option{services.WithAuditor(auditLog), services.WithGate(checker)}

	return &App{
		Config:       cfg,
		Catalog:      catalog,
		Creds:        creds,
		Audit:        auditLog,
		Checker:      checker,
		Lubricentros: services.NewLubricentroService(stores.Lubricentros, stores.Users, creds, catalog, common...),
		Users:        services.NewUserService(stores.Users, stores.Lubricentros, creds, common...),
		OilChanges:   services.NewOilChangeService(stores.OilChanges, stores.Lubricentros, common...),
		Reports:      services.NewReportService(stores.OilChanges, stores.Lubricentros, catalog, common...),
		Limiter:      middleware.NewRateLimitMiddleware(),
		stores:       stores,
	}, nil
}

// Connect opens MongoDB, ensures indexes and the audit broker, then wires
// the application.
func Connect(ctx context.Context, cfg *config.Config) (*App, error) {
	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	store := db.NewStore(client.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	var opts []audit.Option
	publisher, err := NewPublisher(cfg)
	if err != nil {
		// The database is the record of truth; a missing broker only loses the mirror.
		log.WithError(err).WithField("broker", cfg.AuditBroker).Warn("Audit broker unavailable, continuing without it")
	} else if publisher != nil {
		opts = append(opts, audit.WithPublisher(publisher))
	}

	a, err := New(cfg, Stores{
		Lubricentros: store.Lubricentros,
		Users:        store.Users,
		OilChanges:   store.OilChanges,
		Audit:        store.Audit,
		Pinger:       store,
	}, opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	a.client = client
	log.WithFields(log.Fields{"database": cfg.MongoDB, "plans": len(a.Catalog)}).Info("Connected to MongoDB")
	return a, nil
}

// Router builds the HTTP handler.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Handlers{
		Auth:         handlers.NewAuthHandler(a.Users, a.Lubricentros),
		Lubricentros: handlers.NewLubricentroHandler(a.Lubricentros, a.Checker),
		Users:        handlers.NewUserHandler(a.Users),
		OilChanges:   handlers.NewOilChangeHandler(a.OilChanges),
		Reports:      handlers.NewReportHandler(a.Reports, a.stores.Audit),
		Health:       handlers.Health(a.stores.Pinger),
	}, api.Options{
		Tokens:             a.Creds,
		Checker:            a.Checker,
		Limiter:            a.Limiter,
		RateLimitPerWindow: a.Config.RateLimitPerMin,
		FrontendOrigin:     a.Config.FrontendOrigin,
	})
}

// Server returns an HTTP server with the configured timeouts.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      a.Router(),
		ReadTimeout:  a.Config.HTTPReadTimeout,
		WriteTimeout: a.Config.HTTPWriteTimeout,
		IdleTimeout:  a.Config.HTTPIdleTimeout,
	}
}

// SweepRateLimits drops stale limiter entries until ctx is done.
func (a *App) SweepRateLimits(ctx context.Context) {
	ticker := time.NewTicker(api.RateWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Limiter.Sweep(api.RateWindow)
		}
	}
}

// Close flushes pending audit writes and disconnects from MongoDB.
func (a *App) Close(ctx context.Context) error {
	err := a.Audit.Close(ctx)
	if a.client != nil {
		if derr := a.client.Disconnect(ctx); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

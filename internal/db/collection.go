package db

import (
	"context"
	"time"

	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// LubricentroCollection defines the interface for tenant data operations.
type LubricentroCollection interface {
	InsertLubricentro(ctx context.Context, l *models.Lubricentro) error
	FindLubricentroByID(ctx context.Context, id string) (*models.Lubricentro, error)
	FindLubricentros(ctx context.Context, status models.LubricentroStatus) ([]models.Lubricentro, error)
	UpdateLubricentroFields(ctx context.Context, id string, fields bson.M) error
	IncrementServices(ctx context.Context, id string, period string) error
	AdjustActiveUsers(ctx context.Context, id string, delta int) error
	AppendPayment(ctx context.Context, id string, payment models.Payment) error
	ResetMonthlyUsage(ctx context.Context, period string) (int64, error)
	FindTrialsEndedBefore(ctx context.Context, t time.Time) ([]models.Lubricentro, error)
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsersByLubricentro(ctx context.Context, lubricentroID string) ([]models.User, error)
	UpdateUserFields(ctx context.Context, id string, fields bson.M) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// OilChangeCollection defines the interface for service record operations.
type OilChangeCollection interface {
	InsertOilChange(ctx context.Context, oc *models.OilChange) error
	FindOilChangeByID(ctx context.Context, id string) (*models.OilChange, error)
	FindOilChanges(ctx context.Context, filter models.OilChangeFilter) ([]models.OilChange, error)
	CountOilChanges(ctx context.Context, filter models.OilChangeFilter) (int64, error)
	UpdateOilChange(ctx context.Context, id string, oc models.OilChange) error
	DeleteOilChange(ctx context.Context, id string) error
	FindUpcomingOilChanges(ctx context.Context, lubricentroID string, from, to time.Time) ([]models.OilChange, error)
}

// AuditCollection defines the interface for the append-only audit log.
type AuditCollection interface {
	InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error
	FindAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error)
}

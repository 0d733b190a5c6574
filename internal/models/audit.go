package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType enumerates audit event kinds.
type EventType string

const (
	EventLogin               EventType = "login"
	EventLoginFailed         EventType = "login_failed"
	EventLubricentroCreated  EventType = "lubricentro_created"
	EventLubricentroUpdated  EventType = "lubricentro_updated"
	EventSubscriptionChanged EventType = "subscription_changed"
	EventTrialExtended       EventType = "trial_extended"
	EventTrialExpired        EventType = "trial_expired"
	EventPaymentRecorded     EventType = "payment_recorded"
	EventUsageReset          EventType = "usage_reset"
	EventUserCreated         EventType = "user_created"
	EventUserUpdated         EventType = "user_updated"
	EventUserDeleted         EventType = "user_deleted"
	EventOilChangeCreated    EventType = "oil_change_created"
	EventOilChangeUpdated    EventType = "oil_change_updated"
	EventOilChangeDeleted    EventType = "oil_change_deleted"
	EventValidationFailed    EventType = "validation_failed"
	EventSystemError         EventType = "system_error"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AuditEvent is an append-only record of something that happened.
type AuditEvent struct {
	ID            primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	Type          EventType              `json:"type" bson:"type"`
	Severity      Severity               `json:"severity" bson:"severity"`
	ActorID       string                 `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	ActorRole     Role                   `json:"actor_role,omitempty" bson:"actor_role,omitempty"`
	LubricentroID string                 `json:"lubricentro_id,omitempty" bson:"lubricentro_id,omitempty"`
	Message       string                 `json:"message" bson:"message"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	RequestID     string                 `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp" bson:"timestamp"`
}

// AuditFilter narrows audit event listings.
type AuditFilter struct {
	LubricentroID string
	Type          EventType
	Limit         int64
}

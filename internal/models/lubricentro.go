package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LubricentroStatus is the lifecycle state of a tenant.
type LubricentroStatus string

const (
	StatusTrial    LubricentroStatus = "trial"
	StatusActive   LubricentroStatus = "active"
	StatusInactive LubricentroStatus = "inactive"
)

// RenewalType is the billing cadence of a subscription.
type RenewalType string

const (
	RenewalMonthly    RenewalType = "monthly"
	RenewalSemiannual RenewalType = "semiannual"
)

// PeriodLayout formats usage periods as "YYYY-MM".
const PeriodLayout = "2006-01"

// Payment is one entry in a lubricentro's payment history.
type Payment struct {
	Amount     float64   `json:"amount" bson:"amount"`
	Date       time.Time `json:"date" bson:"date"`
	Method     string    `json:"method" bson:"method"` // "transfer", "cash", "card", "mercadopago"
	Reference  string    `json:"reference" bson:"reference"`
	PlanID     string    `json:"plan_id,omitempty" bson:"plan_id,omitempty"`
	RecordedBy string    `json:"recorded_by" bson:"recorded_by"`
}

// Lubricentro is a tenant: one shop using the system.
type Lubricentro struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FantasyName           string             `json:"fantasy_name" bson:"fantasy_name"`
	Responsible           string             `json:"responsible" bson:"responsible"`
	CUIT                  string             `json:"cuit" bson:"cuit"`
	Address               string             `json:"address" bson:"address"`
	Phone                 string             `json:"phone" bson:"phone"`
	Email                 string             `json:"email" bson:"email"`
	ServicePrefix         string             `json:"service_prefix" bson:"service_prefix"`
	Status                LubricentroStatus  `json:"status" bson:"status"`
	TrialEndDate          *time.Time         `json:"trial_end_date,omitempty" bson:"trial_end_date,omitempty"`
	SubscriptionPlan      string             `json:"subscription_plan,omitempty" bson:"subscription_plan,omitempty"`
	RenewalType           RenewalType        `json:"subscription_renewal_type,omitempty" bson:"subscription_renewal_type,omitempty"`
	SubscriptionStartDate *time.Time         `json:"subscription_start_date,omitempty" bson:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `json:"subscription_end_date,omitempty" bson:"subscription_end_date,omitempty"`
	ServicesUsedThisMonth int                `json:"services_used_this_month" bson:"services_used_this_month"`
	CurrentPeriod         string             `json:"current_period" bson:"current_period"`
	ServiceCounter        int                `json:"service_counter" bson:"service_counter"`
	ActiveUserCount       int                `json:"active_user_count" bson:"active_user_count"`
	PaymentHistory        []Payment          `json:"payment_history" bson:"payment_history"`
	OwnerID               string             `json:"owner_id" bson:"owner_id"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" bson:"updated_at"`
}

// PeriodOf returns the usage period key for t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// TrialDaysRemaining returns whole days left in the trial, rounded up.
// A missing or past trial end yields 0.
func (l *Lubricentro) TrialDaysRemaining(now time.Time) int {
	if l.TrialEndDate == nil {
		return 0
	}
	left := l.TrialEndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// ServicesInPeriod returns the service counter if it belongs to period.
// Counters from an older period read as zero until the next write rolls them over.
func (l *Lubricentro) ServicesInPeriod(period string) int {
	if l.CurrentPeriod != period {
		return 0
	}
	return l.ServicesUsedThisMonth
}

// IsValidLubricentroStatus checks if a status is valid
func IsValidLubricentroStatus(status LubricentroStatus) bool {
	switch status {
	case StatusTrial, StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// IsValidRenewalType checks if a renewal type is valid
func IsValidRenewalType(r RenewalType) bool {
	return r == RenewalMonthly || r == RenewalSemiannual
}

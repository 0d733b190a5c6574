// Package entitlement decides whether a user may perform an action for a
// lubricentro, given its lifecycle status, subscription plan and usage counters.
//
// Decisions read the current counters once and are not atomic with the write
// they gate: two concurrent creates can both pass a check that only one of them
// should. Callers accept that window.
package entitlement

import (
	"fmt"
	"time"

	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
)

// Reason identifies why a check was rejected.
type Reason string

const (
	ReasonUnauthenticated     Reason = "unauthenticated"
	ReasonUserInactive        Reason = "user_inactive"
	ReasonTenantNotFound      Reason = "tenant_not_found"
	ReasonTenantMismatch      Reason = "tenant_mismatch"
	ReasonTenantInactive      Reason = "tenant_inactive"
	ReasonSubscriptionExpired Reason = "subscription_expired"
	ReasonTrialExpired        Reason = "trial_expired"
	ReasonTrialServiceLimit   Reason = "trial_service_limit"
	ReasonInsufficientRole    Reason = "insufficient_role"
	ReasonUnknownPlan         Reason = "unknown_plan"
	ReasonPlanServiceLimit    Reason = "plan_service_limit"
	ReasonUserLimit           Reason = "user_limit"
)

// SuggestedAction tells the client what would unblock the user.
type SuggestedAction string

const (
	SuggestLogin             SuggestedAction = "login"
	SuggestContactAdmin      SuggestedAction = "contact_admin"
	SuggestContactSupport    SuggestedAction = "contact_support"
	SuggestSubscribe         SuggestedAction = "subscribe"
	SuggestRenew             SuggestedAction = "renew_subscription"
	SuggestUpgradePlan       SuggestedAction = "upgrade_plan"
	SuggestRequestPermission SuggestedAction = "request_permission"
)

// Result is the outcome of an entitlement check together with the usage
// figures it was based on.
type Result struct {
	Allowed            bool                     `json:"allowed"`
	Reason             Reason                   `json:"reason,omitempty"`
	SuggestedAction    SuggestedAction          `json:"suggested_action,omitempty"`
	Message            string                   `json:"message,omitempty"`
	Action             models.Action            `json:"action"`
	Status             models.LubricentroStatus `json:"status,omitempty"`
	Plan               string                   `json:"plan,omitempty"`
	TrialDaysRemaining int                      `json:"trial_days_remaining"`
	ServicesUsed       int                      `json:"services_used"`
	ServicesLimit      int                      `json:"services_limit"`
	ActiveUsers        int                      `json:"active_users"`
	UsersLimit         int                      `json:"users_limit"`
}

// Input is everything a decision depends on.
type Input struct {
	Action  models.Action
	Actor   *models.Claims
	User    *models.User // fresh copy of the actor, when available
	Tenant  *models.Lubricentro
	Catalog subscription.Catalog
	Now     time.Time
}

func (r Result) reject(reason Reason, suggest SuggestedAction, msg string) Result {
	r.Allowed = false
	r.Reason = reason
	r.SuggestedAction = suggest
	r.Message = msg
	return r
}

// Decide applies the entitlement rules. The first failing rule wins.
func Decide(in Input) Result {
	res := Result{Action: in.Action}

	if in.Actor == nil {
		return res.reject(ReasonUnauthenticated, SuggestLogin, "Debe iniciar sesión para continuar.")
	}
	role := in.Actor.Role
	if in.User != nil {
		if !in.User.IsActive() {
			return res.reject(ReasonUserInactive, SuggestContactAdmin, "Su usuario no está activo. Contacte al administrador del lubricentro.")
		}
		role = in.User.Role
	}

	tenant := in.Tenant
	if tenant == nil {
		return res.reject(ReasonTenantNotFound, SuggestContactSupport, "No se encontró el lubricentro.")
	}
	if role != models.RoleSuperAdmin && in.Actor.LubricentroID != tenant.ID.Hex() {
		return res.reject(ReasonTenantMismatch, SuggestContactSupport, "El usuario no pertenece a este lubricentro.")
	}

	used := tenant.ServicesInPeriod(models.PeriodOf(in.Now))
	res.Status = tenant.Status
	res.Plan = tenant.SubscriptionPlan
	res.ServicesUsed = used
	res.ActiveUsers = tenant.ActiveUserCount

	switch tenant.Status {
	case models.StatusTrial:
		res.TrialDaysRemaining = tenant.TrialDaysRemaining(in.Now)
		res.ServicesLimit = subscription.TrialServiceCap
		res.UsersLimit = subscription.TrialMaxUsers

		if res.TrialDaysRemaining <= 0 {
			return res.reject(ReasonTrialExpired, SuggestSubscribe, "El período de prueba ha finalizado. Suscríbase para continuar.")
		}
		if in.Action == models.ActionCreateService && used >= subscription.TrialServiceCap {
			return res.reject(ReasonTrialServiceLimit, SuggestSubscribe,
				fmt.Sprintf("Alcanzó el límite de %d servicios del período de prueba.", subscription.TrialServiceCap))
		}

	case models.StatusActive:
		if tenant.SubscriptionEndDate != nil && !in.Now.Before(*tenant.SubscriptionEndDate) {
			return res.reject(ReasonSubscriptionExpired, SuggestRenew, "La suscripción ha vencido. Renueve para continuar.")
		}

	default:
		return res.reject(ReasonTenantInactive, SuggestContactSupport, "El lubricentro está inactivo. Contacte a soporte.")
	}

	if !models.CanPerform(role, in.Action) {
		return res.reject(ReasonInsufficientRole, SuggestRequestPermission, "No tiene permisos para realizar esta acción.")
	}

	if tenant.Status == models.StatusActive {
		plan, ok := in.Catalog.Lookup(tenant.SubscriptionPlan)
		if !ok {
			return res.reject(ReasonUnknownPlan, SuggestContactSupport, "El plan de suscripción no es válido.")
		}
		res.ServicesLimit = plan.MaxMonthlyServices
		res.UsersLimit = plan.MaxUsers

		if in.Action == models.ActionCreateService && !plan.Unlimited() && used >= plan.MaxMonthlyServices {
			return res.reject(ReasonPlanServiceLimit, SuggestUpgradePlan,
				fmt.Sprintf("Alcanzó el límite de %d servicios mensuales de su plan.", plan.MaxMonthlyServices))
		}
	}

	if in.Action == models.ActionCreateUser && tenant.ActiveUserCount >= res.UsersLimit {
		return res.reject(ReasonUserLimit, SuggestUpgradePlan,
			fmt.Sprintf("Alcanzó el límite de %d usuarios activos.", res.UsersLimit))
	}

	res.Allowed = true
	return res
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ukydev/lubricentro/internal/auth"
	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
	"go.mongodb.org/mongo-driver/bson"
)

const maxTrialExtensionDays = 90

// LubricentroUpdate carries a partial profile update. Nil fields are kept.
type LubricentroUpdate struct {
	FantasyName   *string `json:"fantasy_name"`
	Responsible   *string `json:"responsible"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	ServicePrefix *string `json:"service_prefix"`
}

// LubricentroService manages tenants and their subscriptions.
type LubricentroService struct {
	base
	tenants db.LubricentroCollection
	users   db.UserCollection
	creds   Credentials
	catalog subscription.Catalog
}

// NewLubricentroService creates the tenant service.
func NewLubricentroService(tenants db.LubricentroCollection, users db.UserCollection, creds Credentials, catalog subscription.Catalog, opts ...Option) *LubricentroService {
	return &LubricentroService{
		base:    newBase(opts),
		tenants: tenants,
		users:   users,
		creds:   creds,
		catalog: catalog,
	}
}

// Catalog returns the plan catalog in use.
func (s *LubricentroService) Catalog() subscription.Catalog {
	return s.catalog
}

// Register signs up a new lubricentro in trial together with its admin owner.
func (s *LubricentroService) Register(ctx context.Context, req models.RegisterRequest) (*models.Lubricentro, *models.User, error) {
	req.FantasyName = clean(req.FantasyName)
	req.Responsible = clean(req.Responsible)
	req.CUIT = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(req.CUIT), " ", ""))
	req.Address = clean(req.Address)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = auth.NormalizeEmail(req.Email)
	req.FirstName = clean(req.FirstName)
	req.LastName = clean(req.LastName)

	switch {
	case req.FantasyName == "":
		return nil, nil, invalid("fantasy_name", "el nombre de fantasía es obligatorio")
	case req.Responsible == "":
		return nil, nil, invalid("responsible", "el responsable es obligatorio")
	case req.CUIT == "":
		return nil, nil, invalid("cuit", "el CUIT es obligatorio")
	}
	if err := s.creds.ValidateEmail(req.Email); err != nil {
		return nil, nil, invalid("email", "%s", err.Error())
	}
	if err := s.creds.ValidatePassword(req.Password); err != nil {
		return nil, nil, invalid("password", "%s", err.Error())
	}
	if req.FirstName == "" {
		req.FirstName = req.Responsible
	}

	if _, err := s.users.FindUserByEmail(ctx, req.Email); err == nil {
		return nil, nil, fmt.Errorf("%w: email %s", ErrConflict, req.Email)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, nil, s.fail(ctx, nil, "", "register lookup email", err)
	}

	hash, err := s.creds.HashPassword(req.Password)
	if err != nil {
		return nil, nil, s.fail(ctx, nil, "", "register hash password", err)
	}

	now := s.now()
	trialEnd := now.AddDate(0, 0, subscription.TrialDays)
	tenant := &models.Lubricentro{
		FantasyName:     req.FantasyName,
		Responsible:     req.Responsible,
		CUIT:            req.CUIT,
		Address:         req.Address,
		Phone:           req.Phone,
		Email:           req.Email,
		ServicePrefix:   ServicePrefix(req.FantasyName),
		Status:          models.StatusTrial,
		TrialEndDate:    &trialEnd,
		CurrentPeriod:   models.PeriodOf(now),
		ActiveUserCount: 1,
		PaymentHistory:  []models.Payment{},
	}
	if err := s.tenants.InsertLubricentro(ctx, tenant); err != nil {
		return nil, nil, s.fail(ctx, nil, "", "register insert lubricentro", err)
	}
	tenantID := tenant.ID.Hex()

	owner := &models.User{
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		Status:        models.UserActive,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		LubricentroID: tenantID,
	}
	if err := s.users.InsertUser(ctx, owner); err != nil {
		// No cross-document transactions: park the orphan tenant.
		_ = s.tenants.UpdateLubricentroFields(ctx, tenantID, bson.M{"status": models.StatusInactive, "active_user_count": 0})
		if errors.Is(err, db.ErrDuplicate) {
			return nil, nil, fmt.Errorf("%w: email %s", ErrConflict, req.Email)
		}
		return nil, nil, s.fail(ctx, nil, tenantID, "register insert owner", err)
	}

	tenant.OwnerID = owner.ID.Hex()
	if err := s.tenants.UpdateLubricentroFields(ctx, tenantID, bson.M{"owner_id": tenant.OwnerID}); err != nil {
		s.audit.SystemError(ctx, nil, tenantID, "register set owner", err)
	}

	actor := &models.Claims{UserID: owner.ID.Hex(), Email: owner.Email, Role: owner.Role, LubricentroID: tenantID}
	s.audit.Info(ctx, models.EventLubricentroCreated, actor, tenantID, "lubricentro registrado: "+tenant.FantasyName, map[string]interface{}{
		"cuit":           tenant.CUIT,
		"trial_end_date": trialEnd,
	})
	s.audit.Info(ctx, models.EventUserCreated, actor, tenantID, "usuario propietario creado", map[string]interface{}{
		"user_id": owner.ID.Hex(),
		"role":    string(owner.Role),
	})
	return tenant, owner, nil
}

// ServicePrefix derives the service number prefix from a shop name: the
// first three letters, upper-cased.
func ServicePrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "SRV"
	}
	return b.String()
}

func (s *LubricentroService) load(ctx context.Context, actor *models.Claims, id, operation string) (*models.Lubricentro, error) {
	tenant, err := s.tenants.FindLubricentroByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, id, operation, err)
	}
	return tenant, nil
}

// Get returns a lubricentro visible to actor.
func (s *LubricentroService) Get(ctx context.Context, actor *models.Claims, id string) (*models.Lubricentro, error) {
	if err := authorizeTenant(actor, id); err != nil {
		return nil, err
	}
	return s.load(ctx, actor, id, "get lubricentro")
}

// List returns all lubricentros, optionally by status. Superadmin only.
func (s *LubricentroService) List(ctx context.Context, actor *models.Claims, status models.LubricentroStatus) ([]models.Lubricentro, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if status != "" && !models.IsValidLubricentroStatus(status) {
		return nil, invalid("status", "estado inválido: %s", status)
	}
	list, err := s.tenants.FindLubricentros(ctx, status)
	if err != nil {
		return nil, s.fail(ctx, actor, "", "list lubricentros", err)
	}
	return list, nil
}

// UpdateProfile changes contact details of a lubricentro.
func (s *LubricentroService) UpdateProfile(ctx context.Context, actor *models.Claims, id string, upd LubricentroUpdate) (*models.Lubricentro, error) {
	if err := authorizeTenant(actor, id); err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}

	cleanPtr(upd.FantasyName)
	cleanPtr(upd.Responsible)
	cleanPtr(upd.Address)
	cleanPtr(upd.Phone)

	fields := bson.M{}
	if upd.FantasyName != nil {
		if *upd.FantasyName == "" {
			return nil, invalid("fantasy_name", "el nombre de fantasía es obligatorio")
		}
		fields["fantasy_name"] = *upd.FantasyName
	}
	if upd.Responsible != nil {
		if *upd.Responsible == "" {
			return nil, invalid("responsible", "el responsable es obligatorio")
		}
		fields["responsible"] = *upd.Responsible
	}
	if upd.Address != nil {
		fields["address"] = *upd.Address
	}
	if upd.Phone != nil {
		fields["phone"] = *upd.Phone
	}
	if upd.Email != nil {
		email := auth.NormalizeEmail(*upd.Email)
		if err := s.creds.ValidateEmail(email); err != nil {
			return nil, invalid("email", "%s", err.Error())
		}
		fields["email"] = email
	}
	if upd.ServicePrefix != nil {
		prefix := strings.ToUpper(strings.TrimSpace(*upd.ServicePrefix))
		if len(prefix) < 2 || len(prefix) > 6 {
			return nil, invalid("service_prefix", "el prefijo debe tener entre 2 y 6 caracteres")
		}
		fields["service_prefix"] = prefix
	}
	if len(fields) == 0 {
		return nil, invalid("", "no hay cambios para aplicar")
	}

	if err := s.update(ctx, actor, id, fields, "update lubricentro"); err != nil {
		return nil, err
	}
	s.audit.Info(ctx, models.EventLubricentroUpdated, actor, id, "datos del lubricentro actualizados", map[string]interface{}{"fields": fieldNames(fields)})
	return s.load(ctx, actor, id, "get lubricentro")
}

func (s *LubricentroService) update(ctx context.Context, actor *models.Claims, id string, fields bson.M, operation string) error {
	err := s.tenants.UpdateLubricentroFields(ctx, id, fields)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return ErrNotFound
	}
	if err != nil {
		return s.fail(ctx, actor, id, operation, err)
	}
	return nil
}

// subscriptionEnd returns the end of a billing cycle starting at start.
func subscriptionEnd(start time.Time, renewal models.RenewalType) time.Time {
	if renewal == models.RenewalSemiannual {
		return start.AddDate(0, 6, 0)
	}
	return start.AddDate(0, 1, 0)
}

// Activate starts a paid subscription on planID.
func (s *LubricentroService) Activate(ctx context.Context, actor *models.Claims, id, planID string, renewal models.RenewalType) (*models.Lubricentro, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, invalid("plan_id", "plan desconocido: %s", planID)
	}
	if renewal == "" {
		renewal = models.RenewalMonthly
	}
	if !models.IsValidRenewalType(renewal) {
		return nil, invalid("renewal_type", "tipo de renovación inválido: %s", renewal)
	}
	tenant, err := s.load(ctx, actor, id, "activate lubricentro")
	if err != nil {
		return nil, err
	}

	start := s.now()
	end := subscriptionEnd(start, renewal)
	fields := bson.M{
		"status":                    models.StatusActive,
		"subscription_plan":         plan.ID,
		"subscription_renewal_type": renewal,
		"subscription_start_date":   start,
		"subscription_end_date":     end,
	}
	if err := s.update(ctx, actor, id, fields, "activate lubricentro"); err != nil {
		return nil, err
	}
	s.audit.Info(ctx, models.EventSubscriptionChanged, actor, id, "suscripción activada: "+plan.Name, map[string]interface{}{
		"previous_status": string(tenant.Status),
		"previous_plan":   tenant.SubscriptionPlan,
		"plan":            plan.ID,
		"renewal_type":    string(renewal),
		"end_date":        end,
	})

	tenant.Status = models.StatusActive
	tenant.SubscriptionPlan = plan.ID
	tenant.RenewalType = renewal
	tenant.SubscriptionStartDate = &start
	tenant.SubscriptionEndDate = &end
	return tenant, nil
}

// Deactivate blocks a lubricentro.
func (s *LubricentroService) Deactivate(ctx context.Context, actor *models.Claims, id, reason string) error {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return err
	}
	tenant, err := s.load(ctx, actor, id, "deactivate lubricentro")
	if err != nil {
		return err
	}
	if tenant.Status == models.StatusInactive {
		return nil
	}
	if err := s.update(ctx, actor, id, bson.M{"status": models.StatusInactive}, "deactivate lubricentro"); err != nil {
		return err
	}
	s.audit.Info(ctx, models.EventSubscriptionChanged, actor, id, "lubricentro desactivado", map[string]interface{}{
		"previous_status": string(tenant.Status),
		"reason":          clean(reason),
	})
	return nil
}

// ExtendTrial pushes the trial end forward by days, counted from the later of
// now and the current trial end. An inactive lubricentro goes back to trial.
func (s *LubricentroService) ExtendTrial(ctx context.Context, actor *models.Claims, id string, days int) (*models.Lubricentro, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if days <= 0 || days > maxTrialExtensionDays {
		return nil, invalid("days", "los días deben estar entre 1 y %d", maxTrialExtensionDays)
	}
	tenant, err := s.load(ctx, actor, id, "extend trial")
	if err != nil {
		return nil, err
	}
	if tenant.Status == models.StatusActive {
		return nil, invalid("status", "el lubricentro ya tiene una suscripción activa")
	}

	from := s.now()
	if tenant.TrialEndDate != nil && tenant.TrialEndDate.After(from) {
		from = *tenant.TrialEndDate
	}
	end := from.AddDate(0, 0, days)
	if err := s.update(ctx, actor, id, bson.M{"status": models.StatusTrial, "trial_end_date": end}, "extend trial"); err != nil {
		return nil, err
	}
	s.audit.Info(ctx, models.EventTrialExtended, actor, id, fmt.Sprintf("período de prueba extendido %d días", days), map[string]interface{}{
		"days":            days,
		"previous_status": string(tenant.Status),
		"trial_end_date":  end,
	})

	tenant.Status = models.StatusTrial
	tenant.TrialEndDate = &end
	return tenant, nil
}

var paymentMethods = map[string]bool{"transfer": true, "cash": true, "card": true, "mercadopago": true}

// RecordPayment appends a payment to the lubricentro's history.
func (s *LubricentroService) RecordPayment(ctx context.Context, actor *models.Claims, id string, p models.Payment) (*models.Payment, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	p.Reference = clean(p.Reference)
	p.PlanID = strings.TrimSpace(p.PlanID)
	if p.Amount <= 0 {
		return nil, invalid("amount", "el monto debe ser mayor a cero")
	}
	if !paymentMethods[p.Method] {
		return nil, invalid("method", "medio de pago inválido: %s", p.Method)
	}
	if p.PlanID != "" {
		if _, ok := s.catalog.Lookup(p.PlanID); !ok {
			return nil, invalid("plan_id", "plan desconocido: %s", p.PlanID)
		}
	}
	if p.Date.IsZero() {
		p.Date = s.now()
	}
	p.RecordedBy = actor.UserID

	err := s.tenants.AppendPayment(ctx, id, p)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, id, "record payment", err)
	}
	s.audit.Info(ctx, models.EventPaymentRecorded, actor, id, "pago registrado", map[string]interface{}{
		"amount":    p.Amount,
		"method":    p.Method,
		"reference": p.Reference,
		"plan_id":   p.PlanID,
	})
	return &p, nil
}

// ChangePlan moves an active lubricentro to another plan. The new plan must
// admit the current number of active users.
func (s *LubricentroService) ChangePlan(ctx context.Context, actor *models.Claims, id, planID string) (*models.Lubricentro, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, invalid("plan_id", "plan desconocido: %s", planID)
	}
	tenant, err := s.load(ctx, actor, id, "change plan")
	if err != nil {
		return nil, err
	}
	if tenant.Status != models.StatusActive {
		return nil, invalid("status", "el lubricentro no tiene una suscripción activa")
	}
	if tenant.ActiveUserCount > plan.MaxUsers {
		return nil, invalid("plan_id", "el plan %s admite %d usuarios y hay %d activos", plan.ID, plan.MaxUsers, tenant.ActiveUserCount)
	}
	if tenant.SubscriptionPlan == plan.ID {
		return tenant, nil
	}
	if err := s.update(ctx, actor, id, bson.M{"subscription_plan": plan.ID}, "change plan"); err != nil {
		return nil, err
	}
	s.audit.Info(ctx, models.EventSubscriptionChanged, actor, id, "plan cambiado a "+plan.Name, map[string]interface{}{
		"previous_plan": tenant.SubscriptionPlan,
		"plan":          plan.ID,
	})
	tenant.SubscriptionPlan = plan.ID
	return tenant, nil
}

// ResetMonthlyUsage zeroes every lubricentro's service counter for the
// current period. A nil actor means a scheduled job.
func (s *LubricentroService) ResetMonthlyUsage(ctx context.Context, actor *models.Claims) (int64, error) {
	if actor != nil {
		if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
			return 0, err
		}
	}
	period := models.PeriodOf(s.now())
	n, err := s.tenants.ResetMonthlyUsage(ctx, period)
	if err != nil {
		return 0, s.fail(ctx, actor, "", "reset monthly usage", err)
	}
	s.audit.Info(ctx, models.EventUsageReset, actor, "", "contadores mensuales reiniciados", map[string]interface{}{
		"period":   period,
		"modified": n,
	})
	return n, nil
}

// ExpireTrials marks every trial that has ended as inactive and returns the
// affected ids. A nil actor means a scheduled job.
func (s *LubricentroService) ExpireTrials(ctx context.Context, actor *models.Claims) ([]string, error) {
	if actor != nil {
		if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
			return nil, err
		}
	}
	now := s.now()
	ended, err := s.tenants.FindTrialsEndedBefore(ctx, now)
	if err != nil {
		return nil, s.fail(ctx, actor, "", "find ended trials", err)
	}

	expired := make([]string, 0, len(ended))
	var errs []error
	for _, t := range ended {
		id := t.ID.Hex()
		if err := s.tenants.UpdateLubricentroFields(ctx, id, bson.M{"status": models.StatusInactive}); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		expired = append(expired, id)
		meta := map[string]interface{}{}
		if t.TrialEndDate != nil {
			meta["trial_end_date"] = *t.TrialEndDate
		}
		s.audit.Info(ctx, models.EventTrialExpired, actor, id, "período de prueba vencido: "+t.FantasyName, meta)
	}
	if err := errors.Join(errs...); err != nil {
		return expired, s.fail(ctx, actor, "", "expire trials", err)
	}
	return expired, nil
}

func fieldNames(fields bson.M) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}

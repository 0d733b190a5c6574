package services

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
)

// Summary is the dashboard report of one lubricentro.
type Summary struct {
	LubricentroID      string                   `json:"lubricentro_id"`
	Period             string                   `json:"period"`
	Status             models.LubricentroStatus `json:"status"`
	Plan               string                   `json:"plan,omitempty"`
	ServicesThisPeriod int                      `json:"services_this_period"`
	ServicesLimit      int                      `json:"services_limit"`
	RecordsThisPeriod  int64                    `json:"records_this_period"`
	TotalRecords       int64                    `json:"total_records"`
	UpcomingServices   int                      `json:"upcoming_services"`
	ActiveUsers        int                      `json:"active_users"`
	UsersLimit         int                      `json:"users_limit"`
	TrialDaysRemaining int                      `json:"trial_days_remaining"`
}

// ReportService builds usage reports.
type ReportService struct {
	base
	records db.OilChangeCollection
	tenants db.LubricentroCollection
	catalog subscription.Catalog
}

// NewReportService creates the report service.
func NewReportService(records db.OilChangeCollection, tenants db.LubricentroCollection, catalog subscription.Catalog, opts ...Option) *ReportService {
	return &ReportService{
		base:    newBase(opts),
		records: records,
		tenants: tenants,
		catalog: catalog,
	}
}

// Summary reports usage and limits of a lubricentro for the current period.
func (s *ReportService) Summary(ctx context.Context, actor *models.Claims, lubricentroID string) (*Summary, error) {
	if err := authorizeTenant(actor, lubricentroID); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindLubricentroByID(ctx, lubricentroID)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "report load lubricentro", err)
	}

	now := s.now()
	period := models.PeriodOf(now)
	start, _ := time.Parse(models.PeriodLayout, period)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	sum := &Summary{
		LubricentroID:      lubricentroID,
		Period:             period,
		Status:             tenant.Status,
		Plan:               tenant.SubscriptionPlan,
		ServicesThisPeriod: tenant.ServicesInPeriod(period),
		ActiveUsers:        tenant.ActiveUserCount,
		TrialDaysRemaining: tenant.TrialDaysRemaining(now),
	}
	if tenant.Status == models.StatusTrial {
		sum.ServicesLimit = subscription.TrialServiceCap
		sum.UsersLimit = subscription.TrialMaxUsers
	} else if plan, ok := s.catalog.Lookup(tenant.SubscriptionPlan); ok {
		sum.ServicesLimit = plan.MaxMonthlyServices
		sum.UsersLimit = plan.MaxUsers
	}

	sum.TotalRecords, err = s.records.CountOilChanges(ctx, models.OilChangeFilter{LubricentroID: lubricentroID})
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "report count records", err)
	}
	sum.RecordsThisPeriod, err = s.records.CountOilChanges(ctx, models.OilChangeFilter{LubricentroID: lubricentroID, From: &start, To: &end})
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "report count period records", err)
	}
	upcoming, err := s.records.FindUpcomingOilChanges(ctx, lubricentroID, now, now.AddDate(0, 0, defaultUpcomingDays))
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "report upcoming", err)
	}
	sum.UpcomingServices = len(upcoming)
	return sum, nil
}

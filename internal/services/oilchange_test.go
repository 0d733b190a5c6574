package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/db/mocks"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newOilChangeService(gate Gate) (*OilChangeService, *mocks.MockOilChangeCollection, *mocks.MockLubricentroCollection, *recordingAuditor) {
	records := new(mocks.MockOilChangeCollection)
	tenants := new(mocks.MockLubricentroCollection)
	rec := &recordingAuditor{}
	svc := NewOilChangeService(records, tenants, WithAuditor(rec), WithGate(gate), WithClock(clock))
	return svc, records, tenants, rec
}

func sampleOilChange() models.OilChange {
	return models.OilChange{
		ClientName:   "  Carlos  López ",
		Plate:        " ab-123 cd ",
		VehicleBrand: "Toyota",
		VehicleType:  "Car",
		OdometerKm:   85000,
		ServiceDate:  time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
		OilType:      "Synthetic",
		OilViscosity: "5w 30",
		OilFilter:    true,
	}
}

func TestOilChangeService_Create(t *testing.T) {
	gate := allow()
	svc, records, tenants, rec := newOilChangeService(gate)
	tenants.On("FindLubricentroByID", mock.Anything, tenantID).Return(&models.Lubricentro{
		ID: tenantOID, ServicePrefix: "LUB", ServiceCounter: 41,
	}, nil)
	records.On("InsertOilChange", mock.Anything, mock.AnythingOfType("*models.OilChange")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.OilChange).ID = primitive.NewObjectID() }).
		Return(nil)
	tenants.On("IncrementServices", mock.Anything, tenantID, "2026-04").Return(nil)

	actor := employeeActor()
	oc, err := svc.Create(context.Background(), actor, tenantID, sampleOilChange())
	require.NoError(t, err)

	assert.Equal(t, "Carlos López", oc.ClientName)
	assert.Equal(t, "AB123CD", oc.Plate)
	assert.Equal(t, "car", oc.VehicleType)
	assert.Equal(t, "synthetic", oc.OilType)
	assert.Equal(t, "5W30", oc.OilViscosity)
	assert.Equal(t, models.DefaultPeriodicityMonths, oc.PeriodicityMonths)
	assert.Equal(t, time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC), oc.NextServiceDate)
	assert.Equal(t, "LUB-00042", oc.ServiceNumber)
	assert.Equal(t, tenantID, oc.LubricentroID)
	assert.Equal(t, actor.UserID, oc.OperatorID)
	assert.Equal(t, actor.Email, oc.OperatorName)

	require.Len(t, gate.requests, 1)
	assert.Equal(t, models.ActionCreateService, gate.requests[0].Action)
	assert.Equal(t, []models.EventType{models.EventOilChangeCreated}, rec.types())
	tenants.AssertExpectations(t)
	records.AssertExpectations(t)
}

func TestOilChangeService_Create_TrialCapBlocksWrite(t *testing.T) {
	svc, records, tenants, _ := newOilChangeService(deny(entitlement.ReasonTrialServiceLimit))

	_, err := svc.Create(context.Background(), adminActor(), tenantID, sampleOilChange())
	var eerr *EntitlementError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, entitlement.ReasonTrialServiceLimit, eerr.Result.Reason)
	records.AssertNotCalled(t, "InsertOilChange", mock.Anything, mock.Anything)
	tenants.AssertNotCalled(t, "IncrementServices", mock.Anything, mock.Anything, mock.Anything)
}

func TestOilChangeService_Create_WithRealChecker(t *testing.T) {
	// Ten services this period on a trial: the eleventh is refused.
	trialEnd := testNow.AddDate(0, 0, 3)
	tenant := &models.Lubricentro{
		ID: tenantOID, Status: models.StatusTrial, TrialEndDate: &trialEnd,
		ServicesUsedThisMonth: subscription.TrialServiceCap, CurrentPeriod: "2026-04", ActiveUserCount: 1,
	}
	tenants := new(mocks.MockLubricentroCollection)
	records := new(mocks.MockOilChangeCollection)
	tenants.On("FindLubricentroByID", mock.Anything, tenantID).Return(tenant, nil)

	checker := entitlement.NewChecker(tenants, subscription.DefaultCatalog(), entitlement.WithClock(clock))
	svc := NewOilChangeService(records, tenants, WithGate(checker), WithClock(clock))

	_, err := svc.Create(context.Background(), adminActor(), tenantID, sampleOilChange())
	var eerr *EntitlementError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, entitlement.ReasonTrialServiceLimit, eerr.Result.Reason)
	records.AssertNotCalled(t, "InsertOilChange", mock.Anything, mock.Anything)
}

func TestOilChangeService_Create_CounterFailureDoesNotFail(t *testing.T) {
	svc, records, tenants, rec := newOilChangeService(allow())
	tenants.On("FindLubricentroByID", mock.Anything, tenantID).Return(&models.Lubricentro{ID: tenantOID, ServicePrefix: "LUB"}, nil)
	records.On("InsertOilChange", mock.Anything, mock.Anything).Return(nil)
	tenants.On("IncrementServices", mock.Anything, tenantID, "2026-04").Return(errors.New("write conflict"))

	oc, err := svc.Create(context.Background(), adminActor(), tenantID, sampleOilChange())
	require.NoError(t, err)
	assert.Equal(t, "LUB-00001", oc.ServiceNumber)
	assert.Equal(t, []string{"increment services counter"}, rec.errors)
}

func TestOilChangeService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*models.OilChange)
		field string
	}{
		{"no client", func(o *models.OilChange) { o.ClientName = " " }, "client_name"},
		{"no plate", func(o *models.OilChange) { o.Plate = "--" }, "plate"},
		{"no brand", func(o *models.OilChange) { o.VehicleBrand = "" }, "vehicle_brand"},
		{"bad vehicle type", func(o *models.OilChange) { o.VehicleType = "boat" }, "vehicle_type"},
		{"bad oil type", func(o *models.OilChange) { o.OilType = "olive" }, "oil_type"},
		{"negative km", func(o *models.OilChange) { o.OdometerKm = -1 }, "odometer_km"},
		{"next km behind", func(o *models.OilChange) { o.NextServiceKm = 1000 }, "next_service_km"},
		{"periodicity", func(o *models.OilChange) { o.PeriodicityMonths = 36 }, "periodicity_months"},
		{"future date", func(o *models.OilChange) { o.ServiceDate = testNow.AddDate(0, 0, 3) }, "service_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := allow()
			svc, _, _, _ := newOilChangeService(gate)
			oc := sampleOilChange()
			tt.edit(&oc)

			_, err := svc.Create(context.Background(), adminActor(), tenantID, oc)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, gate.requests)
		})
	}
}

func TestOilChangeService_GetScoped(t *testing.T) {
	svc, records, _, _ := newOilChangeService(nil)
	own := &models.OilChange{ID: primitive.NewObjectID(), LubricentroID: tenantID}
	foreign := &models.OilChange{ID: primitive.NewObjectID(), LubricentroID: primitive.NewObjectID().Hex()}
	records.On("FindOilChangeByID", mock.Anything, own.ID.Hex()).Return(own, nil)
	records.On("FindOilChangeByID", mock.Anything, foreign.ID.Hex()).Return(foreign, nil)
	records.On("FindOilChangeByID", mock.Anything, "bad").Return(nil, db.ErrInvalidID)

	got, err := svc.Get(context.Background(), employeeActor(), own.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	_, err = svc.Get(context.Background(), employeeActor(), foreign.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), superActor(), foreign.ID.Hex())
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), employeeActor(), "bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOilChangeService_List(t *testing.T) {
	svc, records, _, _ := newOilChangeService(nil)
	want := models.OilChangeFilter{LubricentroID: tenantID, Plate: "AB123CD", Limit: maxPageSize}
	records.On("FindOilChanges", mock.Anything, want).Return([]models.OilChange{{Plate: "AB123CD"}}, nil)
	records.On("CountOilChanges", mock.Anything, want).Return(int64(7), nil)

	// the caller's tenant is forced even if another one is asked for
	list, total, err := svc.List(context.Background(), adminActor(), models.OilChangeFilter{
		LubricentroID: "other", Plate: "ab 123-cd", Limit: 5000, Skip: -3,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(7), total)

	from, to := testNow, testNow.AddDate(0, 0, -1)
	_, _, err = svc.List(context.Background(), adminActor(), models.OilChangeFilter{From: &from, To: &to})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOilChangeService_Update(t *testing.T) {
	svc, records, _, rec := newOilChangeService(nil)
	existing := &models.OilChange{
		ID: primitive.NewObjectID(), LubricentroID: tenantID, ServiceNumber: "LUB-00003",
		OperatorID: "op-1", OperatorName: "Pedro", CreatedAt: testNow.AddDate(0, -1, 0),
	}
	records.On("FindOilChangeByID", mock.Anything, existing.ID.Hex()).Return(existing, nil)
	records.On("UpdateOilChange", mock.Anything, existing.ID.Hex(), mock.MatchedBy(func(oc models.OilChange) bool {
		return oc.ServiceNumber == "LUB-00003" && oc.OperatorID == "op-1" && oc.PeriodicityMonths == 3
	})).Return(nil)

	in := sampleOilChange()
	in.PeriodicityMonths = 3
	got, err := svc.Update(context.Background(), adminActor(), existing.ID.Hex(), in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC), got.NextServiceDate)
	assert.Equal(t, "Pedro", got.OperatorName)
	assert.Equal(t, []models.EventType{models.EventOilChangeUpdated}, rec.types())
}

func TestOilChangeService_Delete(t *testing.T) {
	svc, records, _, rec := newOilChangeService(nil)
	existing := &models.OilChange{ID: primitive.NewObjectID(), LubricentroID: tenantID}
	records.On("FindOilChangeByID", mock.Anything, existing.ID.Hex()).Return(existing, nil)
	records.On("DeleteOilChange", mock.Anything, existing.ID.Hex()).Return(nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), employeeActor(), existing.ID.Hex()), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), adminActor(), existing.ID.Hex()))
	assert.Equal(t, []models.EventType{models.EventOilChangeDeleted}, rec.types())
}

func TestOilChangeService_Upcoming(t *testing.T) {
	svc, records, _, _ := newOilChangeService(nil)
	records.On("FindUpcomingOilChanges", mock.Anything, tenantID, testNow, testNow.AddDate(0, 0, 30)).Return([]models.OilChange{}, nil)
	records.On("FindUpcomingOilChanges", mock.Anything, tenantID, testNow, testNow.AddDate(0, 0, 365)).Return([]models.OilChange{{}}, nil)

	list, err := svc.Upcoming(context.Background(), adminActor(), tenantID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.Upcoming(context.Background(), adminActor(), tenantID, 1000)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "AB123CD", NormalizePlate(" ab-123 cd "))
	assert.Equal(t, "ABC123", NormalizePlate("abc.123"))
	assert.Equal(t, "", NormalizePlate("  "))
}

func TestReportService_Summary(t *testing.T) {
	records := new(mocks.MockOilChangeCollection)
	tenants := new(mocks.MockLubricentroCollection)
	svc := NewReportService(records, tenants, subscription.DefaultCatalog(), WithClock(clock))

	tenants.On("FindLubricentroByID", mock.Anything, tenantID).Return(&models.Lubricentro{
		ID: tenantOID, Status: models.StatusActive, SubscriptionPlan: "basic",
		ServicesUsedThisMonth: 12, CurrentPeriod: "2026-04", ActiveUserCount: 2,
	}, nil)
	records.On("CountOilChanges", mock.Anything, models.OilChangeFilter{LubricentroID: tenantID}).Return(int64(300), nil)
	records.On("CountOilChanges", mock.Anything, mock.MatchedBy(func(f models.OilChangeFilter) bool {
		return f.From != nil && f.From.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	})).Return(int64(12), nil)
	records.On("FindUpcomingOilChanges", mock.Anything, tenantID, testNow, testNow.AddDate(0, 0, 30)).Return([]models.OilChange{{}, {}}, nil)

	sum, err := svc.Summary(context.Background(), adminActor(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "2026-04", sum.Period)
	assert.Equal(t, 12, sum.ServicesThisPeriod)
	assert.Equal(t, 50, sum.ServicesLimit)
	assert.Equal(t, 2, sum.UsersLimit)
	assert.Equal(t, int64(300), sum.TotalRecords)
	assert.Equal(t, int64(12), sum.RecordsThisPeriod)
	assert.Equal(t, 2, sum.UpcomingServices)
}

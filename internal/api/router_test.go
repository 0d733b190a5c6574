package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/lubricentro/internal/auth"
	"github.com/ukydev/lubricentro/internal/db/mocks"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/handlers"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/requestid"
	"github.com/ukydev/lubricentro/internal/services"
	"github.com/ukydev/lubricentro/internal/subscription"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	router  http.Handler
	creds   *auth.Service
	tenants *mocks.MockLubricentroCollection
	records *mocks.MockOilChangeCollection
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	creds, err := auth.NewService("router-secret", time.Hour)
	require.NoError(t, err)

	tenants := new(mocks.MockLubricentroCollection)
	users := new(mocks.MockUserCollection)
	records := new(mocks.MockOilChangeCollection)
	events := new(mocks.MockAuditCollection)
	catalog := subscription.DefaultCatalog()
	checker := entitlement.NewChecker(tenants, catalog)

	userSvc := services.NewUserService(users, tenants, creds)
	lubSvc := services.NewLubricentroService(tenants, users, creds, catalog)
	oilSvc := services.NewOilChangeService(records, tenants, services.WithGate(checker))
	reportSvc := services.NewReportService(records, tenants, catalog)

	router := NewRouter(Handlers{
		Auth:         handlers.NewAuthHandler(userSvc, lubSvc),
		Lubricentros: handlers.NewLubricentroHandler(lubSvc, checker),
		Users:        handlers.NewUserHandler(userSvc),
		OilChanges:   handlers.NewOilChangeHandler(oilSvc),
		Reports:      handlers.NewReportHandler(reportSvc, events),
		Health:       handlers.Health(nil),
	}, Options{
		Tokens:             creds,
		Checker:            checker,
		RateLimitPerWindow: rateLimit,
		FrontendOrigin:     "https://app.lubri.com",
	})
	return &fixture{router: router, creds: creds, tenants: tenants, records: records}
}

func (f *fixture) token(t *testing.T, role models.Role, lubricentroID string) string {
	t.Helper()
	tok, err := f.creds.GenerateToken(&models.User{
		ID: primitive.NewObjectID(), Email: "x@lubri.com", Role: role, LubricentroID: lubricentroID,
	})
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PublicRoutes(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestid.Header))

	rr = f.do(http.MethodGet, "/api/plans", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(http.MethodGet, "/api/oil-changes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodGet, "/api/oil-changes", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RoleGuards(t *testing.T) {
	f := newFixture(t, 0)
	lubID := primitive.NewObjectID().Hex()

	employee := f.token(t, models.RoleEmployee, lubID)
	admin := f.token(t, models.RoleAdmin, lubID)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/users", employee, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/audit-events", employee, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/admin/lubricentros", admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/admin/usage/reset", admin, nil).Code)
}

func TestRouter_ReportsGatedByEntitlement(t *testing.T) {
	f := newFixture(t, 0)
	lubOID := primitive.NewObjectID()
	lubID := lubOID.Hex()
	f.tenants.On("FindLubricentroByID", mock.Anything, lubID).Return(&models.Lubricentro{ID: lubOID, Status: models.StatusInactive}, nil)

	rr := f.do(http.MethodGet, "/api/reports/summary", f.token(t, models.RoleAdmin, lubID), nil)

	require.Equal(t, http.StatusForbidden, rr.Code)
	var res entitlement.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, entitlement.ReasonTenantInactive, res.Reason)
	f.records.AssertNotCalled(t, "CountOilChanges", mock.Anything, mock.Anything)
}

func TestRouter_CreateOilChange_TrialExpired(t *testing.T) {
	f := newFixture(t, 0)
	lubOID := primitive.NewObjectID()
	lubID := lubOID.Hex()
	ended := time.Now().Add(-time.Hour)
	f.tenants.On("FindLubricentroByID", mock.Anything, lubID).Return(&models.Lubricentro{ID: lubOID, Status: models.StatusTrial, TrialEndDate: &ended}, nil)

	rr := f.do(http.MethodPost, "/api/oil-changes", f.token(t, models.RoleEmployee, lubID), map[string]interface{}{
		"client_name": "Ana", "plate": "AA111AA", "vehicle_brand": "Fiat",
	})

	require.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
	var res entitlement.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, entitlement.ReasonTrialExpired, res.Reason)
	f.records.AssertNotCalled(t, "InsertOilChange", mock.Anything, mock.Anything)
}

func TestRouter_RateLimit(t *testing.T) {
	f := newFixture(t, 2)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil).Code)
	rr := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newFixture(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/oil-changes", nil)
	req.Header.Set("Origin", "https://app.lubri.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.lubri.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, rr.Code)
}

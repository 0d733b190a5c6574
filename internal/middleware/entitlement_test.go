package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/models"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, req entitlement.Request) (entitlement.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entitlement.Result), args.Error(1)
}

func serveGuarded(checker EntitlementChecker, claims *models.Claims, target string) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := RequireEntitlement(checker, models.ActionViewReports)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest("GET", target, nil)
	if claims != nil {
		req = req.WithContext(WithClaims(req.Context(), claims))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called
}

func TestRequireEntitlement(t *testing.T) {
	admin := &models.Claims{UserID: "u1", Role: models.RoleAdmin, LubricentroID: "lub-1"}

	t.Run("allowed", func(t *testing.T) {
		checker := new(MockChecker)
		checker.On("Check", mock.Anything, entitlement.Request{LubricentroID: "lub-1", Action: models.ActionViewReports, Actor: admin}).
			Return(entitlement.Result{Allowed: true}, nil)

		w, called := serveGuarded(checker, admin, "/api/reports/summary?lubricentro_id=other")
		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		checker.AssertExpectations(t)
	})

	t.Run("rejected carries the decision", func(t *testing.T) {
		checker := new(MockChecker)
		checker.On("Check", mock.Anything, mock.Anything).Return(entitlement.Result{
			Reason:          entitlement.ReasonTrialExpired,
			SuggestedAction: entitlement.SuggestSubscribe,
			Message:         "El período de prueba ha finalizado.",
		}, nil)

		w, called := serveGuarded(checker, admin, "/api/reports/summary")
		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)

		var body entitlement.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Allowed)
		assert.Equal(t, entitlement.ReasonTrialExpired, body.Reason)
		assert.Equal(t, entitlement.SuggestSubscribe, body.SuggestedAction)
	})

	t.Run("checker failure", func(t *testing.T) {
		checker := new(MockChecker)
		checker.On("Check", mock.Anything, mock.Anything).Return(entitlement.Result{}, errors.New("mongo down"))

		w, called := serveGuarded(checker, admin, "/api/reports/summary")
		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("superadmin picks the lubricentro", func(t *testing.T) {
		root := &models.Claims{UserID: "root", Role: models.RoleSuperAdmin}
		checker := new(MockChecker)
		checker.On("Check", mock.Anything, entitlement.Request{LubricentroID: "lub-9", Action: models.ActionViewReports, Actor: root}).
			Return(entitlement.Result{Allowed: true}, nil)

		_, called := serveGuarded(checker, root, "/api/reports/summary?lubricentro_id=lub-9")
		assert.True(t, called)
		checker.AssertExpectations(t)
	})

	t.Run("no claims", func(t *testing.T) {
		w, called := serveGuarded(new(MockChecker), nil, "/api/reports/summary")
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

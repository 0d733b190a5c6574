package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ukydev/lubricentro/internal/auth"
	"github.com/ukydev/lubricentro/internal/entitlement"
	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type recordedEvent struct {
	Type          models.EventType
	LubricentroID string
	Metadata      map[string]interface{}
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []recordedEvent
	errors []string
}

func (a *recordingAuditor) Info(_ context.Context, eventType models.EventType, _ *models.Claims, lubricentroID, _ string, metadata map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{Type: eventType, LubricentroID: lubricentroID, Metadata: metadata})
}

func (a *recordingAuditor) SystemError(_ context.Context, _ *models.Claims, _, operation string, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, operation)
}

func (a *recordingAuditor) types() []models.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.EventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

// stubGate returns a fixed decision and remembers the requests it saw.
type stubGate struct {
	result   entitlement.Result
	err      error
	requests []entitlement.Request
}

func (g *stubGate) Check(_ context.Context, req entitlement.Request) (entitlement.Result, error) {
	g.requests = append(g.requests, req)
	res := g.result
	res.Action = req.Action
	return res, g.err
}

func allow() *stubGate { return &stubGate{result: entitlement.Result{Allowed: true}} }

func deny(reason entitlement.Reason) *stubGate {
	return &stubGate{result: entitlement.Result{Reason: reason, SuggestedAction: entitlement.SuggestSubscribe}}
}

func newCreds(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return svc
}

func ptr[T any](v T) *T { return &v }

var (
	tenantOID = primitive.NewObjectID()
	tenantID  = tenantOID.Hex()
)

func adminActor() *models.Claims {
	return &models.Claims{UserID: primitive.NewObjectID().Hex(), Email: "admin@lubri.com", Role: models.RoleAdmin, LubricentroID: tenantID}
}

func employeeActor() *models.Claims {
	return &models.Claims{UserID: primitive.NewObjectID().Hex(), Email: "emp@lubri.com", Role: models.RoleEmployee, LubricentroID: tenantID}
}

func superActor() *models.Claims {
	return &models.Claims{UserID: primitive.NewObjectID().Hex(), Email: "root@lubri.com", Role: models.RoleSuperAdmin}
}

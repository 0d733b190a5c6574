package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/lubricentro/internal/db/mocks"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/requestid"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e models.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func TestLogger_Log(t *testing.T) {
	store := new(mocks.MockAuditCollection)
	pub := &recordingPublisher{}
	console, hook := test.NewNullLogger()

	var stored *models.AuditEvent
	store.On("InsertAuditEvent", mock.Anything, mock.AnythingOfType("*models.AuditEvent")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.AuditEvent) }).
		Return(nil)

	l := NewLogger(store, WithPublisher(pub), WithFieldLogger(console), WithClock(fixedClock))

	ctx := requestid.NewContext(context.Background(), "req-1")
	actor := &models.Claims{UserID: "u1", Role: models.RoleAdmin, LubricentroID: "lub1"}
	l.Info(ctx, models.EventOilChangeCreated, actor, "", "oil change created", map[string]interface{}{"plate": "AB123CD"})

	require.NoError(t, l.Wait(context.Background()))
	store.AssertExpectations(t)

	require.NotNil(t, stored)
	assert.Equal(t, models.EventOilChangeCreated, stored.Type)
	assert.Equal(t, models.SeverityInfo, stored.Severity)
	assert.Equal(t, "u1", stored.ActorID)
	assert.Equal(t, "lub1", stored.LubricentroID, "tenant taken from actor")
	assert.Equal(t, "req-1", stored.RequestID)
	assert.Equal(t, fixedClock(), stored.Timestamp)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventOilChangeCreated, pub.events[0].Type)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "oil change created", hook.LastEntry().Message)
}

func TestLogger_StoreFailureIsSwallowed(t *testing.T) {
	store := new(mocks.MockAuditCollection)
	store.On("InsertAuditEvent", mock.Anything, mock.Anything).Return(errors.New("mongo down"))
	pub := &recordingPublisher{err: errors.New("broker down")}
	console, hook := test.NewNullLogger()

	l := NewLogger(store, WithPublisher(pub), WithFieldLogger(console))

	assert.NotPanics(t, func() {
		l.ValidationFailed(context.Background(), nil, "lub1", "trial_expired", nil)
	})
	require.NoError(t, l.Wait(context.Background()))

	var sawStoreError, sawBrokerWarning bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to write audit event" {
			sawStoreError = true
		}
		if e.Message == "Failed to publish audit event" {
			sawBrokerWarning = true
		}
	}
	assert.True(t, sawStoreError)
	assert.True(t, sawBrokerWarning)
}

func TestLogger_ValidationFailedAndSystemError(t *testing.T) {
	store := new(mocks.MockAuditCollection)
	var mu sync.Mutex
	var events []models.AuditEvent
	store.On("InsertAuditEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			events = append(events, *args.Get(1).(*models.AuditEvent))
			mu.Unlock()
		}).
		Return(nil)
	console, hook := test.NewNullLogger()
	l := NewLogger(store, WithFieldLogger(console))

	l.ValidationFailed(context.Background(), &models.Claims{UserID: "u2", Role: models.RoleEmployee}, "lub9", "trial_service_limit",
		map[string]interface{}{"action": "create_service"})
	l.SystemError(context.Background(), nil, "lub9", "create oil change", errors.New("timeout"))
	require.NoError(t, l.Wait(context.Background()))

	require.Len(t, events, 2)
	byType := map[models.EventType]models.AuditEvent{}
	for _, e := range events {
		byType[e.Type] = e
	}

	vf := byType[models.EventValidationFailed]
	assert.Equal(t, models.SeverityWarning, vf.Severity)
	assert.Equal(t, "trial_service_limit", vf.Metadata["reason"])
	assert.Equal(t, "create_service", vf.Metadata["action"])
	assert.Equal(t, "lub9", vf.LubricentroID)

	se := byType[models.EventSystemError]
	assert.Equal(t, models.SeverityError, se.Severity)
	assert.Equal(t, "timeout", se.Metadata["error"])
	assert.Empty(t, se.ActorID)

	levels := map[logrus.Level]int{}
	for _, e := range hook.AllEntries() {
		levels[e.Level]++
	}
	assert.Equal(t, 1, levels[logrus.WarnLevel])
	assert.Equal(t, 1, levels[logrus.ErrorLevel])
}

func TestLogger_NilStore(t *testing.T) {
	console, _ := test.NewNullLogger()
	pub := &recordingPublisher{}
	l := NewLogger(nil, WithPublisher(pub), WithFieldLogger(console))

	l.Info(context.Background(), models.EventLogin, nil, "", "login", nil)
	require.NoError(t, l.Close(context.Background()))
	assert.Len(t, pub.events, 1)
	assert.True(t, pub.closed)
}

func TestLogger_WaitHonoursContext(t *testing.T) {
	store := new(mocks.MockAuditCollection)
	release := make(chan struct{})
	store.On("InsertAuditEvent", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil)
	console, _ := test.NewNullLogger()
	l := NewLogger(store, WithFieldLogger(console))

	l.Info(context.Background(), models.EventLogin, nil, "", "login", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, l.Wait(context.Background()))
}

// Package mocks provides testify mocks of the db collection interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// MockLubricentroCollection is a mock implementation of db.LubricentroCollection
type MockLubricentroCollection struct {
	mock.Mock
}

func (m *MockLubricentroCollection) InsertLubricentro(ctx context.Context, l *models.Lubricentro) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLubricentroCollection) FindLubricentroByID(ctx context.Context, id string) (*models.Lubricentro, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lubricentro), args.Error(1)
}

func (m *MockLubricentroCollection) FindLubricentros(ctx context.Context, status models.LubricentroStatus) ([]models.Lubricentro, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lubricentro), args.Error(1)
}

func (m *MockLubricentroCollection) UpdateLubricentroFields(ctx context.Context, id string, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockLubricentroCollection) IncrementServices(ctx context.Context, id string, period string) error {
	args := m.Called(ctx, id, period)
	return args.Error(0)
}

func (m *MockLubricentroCollection) AdjustActiveUsers(ctx context.Context, id string, delta int) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockLubricentroCollection) AppendPayment(ctx context.Context, id string, payment models.Payment) error {
	args := m.Called(ctx, id, payment)
	return args.Error(0)
}

func (m *MockLubricentroCollection) ResetMonthlyUsage(ctx context.Context, period string) (int64, error) {
	args := m.Called(ctx, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLubricentroCollection) FindTrialsEndedBefore(ctx context.Context, t time.Time) ([]models.Lubricentro, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lubricentro), args.Error(1)
}

// MockUserCollection is a mock implementation of db.UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsersByLubricentro(ctx context.Context, lubricentroID string) ([]models.User, error) {
	args := m.Called(ctx, lubricentroID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUserFields(ctx context.Context, id string, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserCollection) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockOilChangeCollection is a mock implementation of db.OilChangeCollection
type MockOilChangeCollection struct {
	mock.Mock
}

func (m *MockOilChangeCollection) InsertOilChange(ctx context.Context, oc *models.OilChange) error {
	args := m.Called(ctx, oc)
	return args.Error(0)
}

func (m *MockOilChangeCollection) FindOilChangeByID(ctx context.Context, id string) (*models.OilChange, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OilChange), args.Error(1)
}

func (m *MockOilChangeCollection) FindOilChanges(ctx context.Context, filter models.OilChangeFilter) ([]models.OilChange, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OilChange), args.Error(1)
}

func (m *MockOilChangeCollection) CountOilChanges(ctx context.Context, filter models.OilChangeFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOilChangeCollection) UpdateOilChange(ctx context.Context, id string, oc models.OilChange) error {
	args := m.Called(ctx, id, oc)
	return args.Error(0)
}

func (m *MockOilChangeCollection) DeleteOilChange(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOilChangeCollection) FindUpcomingOilChanges(ctx context.Context, lubricentroID string, from, to time.Time) ([]models.OilChange, error) {
	args := m.Called(ctx, lubricentroID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OilChange), args.Error(1)
}

// MockAuditCollection is a mock implementation of db.AuditCollection
type MockAuditCollection struct {
	mock.Mock
}

func (m *MockAuditCollection) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditCollection) FindAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEvent), args.Error(1)
}

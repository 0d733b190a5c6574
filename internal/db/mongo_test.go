package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestCollections_NilCollection(t *testing.T) {
	ctx := context.Background()

	lubs := &MongoLubricentroCollection{}
	assert.ErrorIs(t, lubs.InsertLubricentro(ctx, &models.Lubricentro{}), ErrNilCollection)
	assert.ErrorIs(t, lubs.IncrementServices(ctx, "x", "2026-01"), ErrNilCollection)

	users := &MongoUserCollection{}
	assert.ErrorIs(t, users.InsertUser(ctx, &models.User{}), ErrNilCollection)

	ocs := &MongoOilChangeCollection{}
	assert.ErrorIs(t, ocs.InsertOilChange(ctx, &models.OilChange{}), ErrNilCollection)

	audit := &MongoAuditCollection{}
	assert.ErrorIs(t, audit.InsertAuditEvent(ctx, &models.AuditEvent{}), ErrNilCollection)
}

func TestObjectID_Invalid(t *testing.T) {
	_, err := objectID("invalid-id")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = objectID("507f1f77bcf86cd799439011")
	assert.NoError(t, err)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(mongo.ErrNoDocuments), ErrNotFound)
	other := errors.New("boom")
	assert.Equal(t, other, notFound(other))
}

func TestOilChangeQuery(t *testing.T) {
	q := oilChangeQuery(models.OilChangeFilter{LubricentroID: "lub1", Plate: " ab1.23 "})
	assert.Equal(t, "lub1", q["lubricentro_id"])
	plate := q["plate"].(bson.M)
	assert.Equal(t, `^AB1\.23`, plate["$regex"])
	_, hasDate := q["service_date"]
	assert.False(t, hasDate)
}

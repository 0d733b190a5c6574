package db

import (
	"context"

	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultAuditLimit = 100

// MongoAuditCollection implements AuditCollection for MongoDB
type MongoAuditCollection struct {
	Collection *mongo.Collection
}

// InsertAuditEvent appends an event to the log.
func (c *MongoAuditCollection) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	_, err := c.Collection.InsertOne(ctx, event)
	return err
}

// FindAuditEvents lists events newest first.
func (c *MongoAuditCollection) FindAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	q := bson.M{}
	if filter.LubricentroID != "" {
		q["lubricentro_id"] = filter.LubricentroID
	}
	if filter.Type != "" {
		q["type"] = filter.Type
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	cursor, err := c.Collection.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.AuditEvent](ctx, cursor)
}

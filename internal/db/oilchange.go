package db

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOilChangeCollection implements OilChangeCollection for MongoDB
type MongoOilChangeCollection struct {
	Collection *mongo.Collection
}

// InsertOilChange inserts a service record into the collection.
func (c *MongoOilChangeCollection) InsertOilChange(ctx context.Context, oc *models.OilChange) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if oc.ID.IsZero() {
		oc.ID = primitive.NewObjectID()
	}
	oc.CreatedAt = time.Now()
	oc.UpdatedAt = time.Now()
	_, err := c.Collection.InsertOne(ctx, oc)
	return err
}

// FindOilChangeByID finds a service record by its ID.
func (c *MongoOilChangeCollection) FindOilChangeByID(ctx context.Context, id string) (*models.OilChange, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var oc models.OilChange
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&oc); err != nil {
		return nil, notFound(err)
	}
	return &oc, nil
}

func oilChangeQuery(filter models.OilChangeFilter) bson.M {
	q := bson.M{}
	if filter.LubricentroID != "" {
		q["lubricentro_id"] = filter.LubricentroID
	}
	if plate := strings.TrimSpace(filter.Plate); plate != "" {
		q["plate"] = bson.M{"$regex": "^" + regexp.QuoteMeta(strings.ToUpper(plate))}
	}
	if filter.From != nil || filter.To != nil {
		r := bson.M{}
		if filter.From != nil {
			r["$gte"] = *filter.From
		}
		if filter.To != nil {
			r["$lte"] = *filter.To
		}
		q["service_date"] = r
	}
	return q
}

// FindOilChanges queries service records, newest first.
func (c *MongoOilChangeCollection) FindOilChanges(ctx context.Context, filter models.OilChangeFilter) ([]models.OilChange, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "service_date", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	cursor, err := c.Collection.Find(ctx, oilChangeQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.OilChange](ctx, cursor)
}

// CountOilChanges counts service records matching filter.
func (c *MongoOilChangeCollection) CountOilChanges(ctx context.Context, filter models.OilChangeFilter) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	return c.Collection.CountDocuments(ctx, oilChangeQuery(filter))
}

// UpdateOilChange replaces a service record by its ID.
func (c *MongoOilChangeCollection) UpdateOilChange(ctx context.Context, id string, oc models.OilChange) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	oc.ID = oid
	oc.UpdatedAt = time.Now()
	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": oid}, oc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOilChange deletes a service record by its ID.
func (c *MongoOilChangeCollection) DeleteOilChange(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindUpcomingOilChanges lists records whose next service date falls in [from, to].
func (c *MongoOilChangeCollection) FindUpcomingOilChanges(ctx context.Context, lubricentroID string, from, to time.Time) ([]models.OilChange, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, bson.M{
		"lubricentro_id":    lubricentroID,
		"next_service_date": bson.M{"$gte": from, "$lte": to},
	}, options.Find().SetSort(bson.D{{Key: "next_service_date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.OilChange](ctx, cursor)
}

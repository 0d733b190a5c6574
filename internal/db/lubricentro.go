package db

import (
	"context"
	"time"

	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLubricentroCollection implements LubricentroCollection for MongoDB
type MongoLubricentroCollection struct {
	Collection *mongo.Collection
}

// InsertLubricentro inserts a tenant, assigning an id if missing.
func (c *MongoLubricentroCollection) InsertLubricentro(ctx context.Context, l *models.Lubricentro) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.PaymentHistory == nil {
		l.PaymentHistory = []models.Payment{}
	}
	_, err := c.Collection.InsertOne(ctx, l)
	return err
}

// FindLubricentroByID finds a tenant by its ID.
func (c *MongoLubricentroCollection) FindLubricentroByID(ctx context.Context, id string) (*models.Lubricentro, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var l models.Lubricentro
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&l); err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// FindLubricentros lists tenants, optionally by status.
func (c *MongoLubricentroCollection) FindLubricentros(ctx context.Context, status models.LubricentroStatus) ([]models.Lubricentro, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := c.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Lubricentro](ctx, cursor)
}

// UpdateLubricentroFields sets the given fields on a tenant.
func (c *MongoLubricentroCollection) UpdateLubricentroFields(ctx context.Context, id string, fields bson.M) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementServices bumps the monthly service counter, rolling it over
// when the stored period differs from period.
func (c *MongoLubricentroCollection) IncrementServices(ctx context.Context, id string, period string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	now := time.Now()

	result, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "current_period": period},
		bson.M{
			"$inc": bson.M{"services_used_this_month": 1, "service_counter": 1},
			"$set": bson.M{"updated_at": now},
		})
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// First service of a new period.
	result, err = c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "current_period": bson.M{"$ne": period}},
		bson.M{
			"$set": bson.M{"services_used_this_month": 1, "current_period": period, "updated_at": now},
			"$inc": bson.M{"service_counter": 1},
		})
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Another writer rolled the period over between the two updates.
	result, err = c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "current_period": period},
		bson.M{
			"$inc": bson.M{"services_used_this_month": 1, "service_counter": 1},
			"$set": bson.M{"updated_at": now},
		})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustActiveUsers adds delta to the active user counter.
func (c *MongoLubricentroCollection) AdjustActiveUsers(ctx context.Context, id string, delta int) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"active_user_count": delta},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPayment pushes a payment onto the tenant's history.
func (c *MongoLubricentroCollection) AppendPayment(ctx context.Context, id string, payment models.Payment) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"payment_history": payment},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetMonthlyUsage zeroes every tenant's service counter for period.
func (c *MongoLubricentroCollection) ResetMonthlyUsage(ctx context.Context, period string) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	result, err := c.Collection.UpdateMany(ctx, bson.M{}, bson.M{
		"$set": bson.M{"services_used_this_month": 0, "current_period": period, "updated_at": time.Now()},
	})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// FindTrialsEndedBefore lists trial tenants whose trial ended before t.
func (c *MongoLubricentroCollection) FindTrialsEndedBefore(ctx context.Context, t time.Time) ([]models.Lubricentro, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, bson.M{
		"status":         models.StatusTrial,
		"trial_end_date": bson.M{"$lt": t},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Lubricentro](ctx, cursor)
}

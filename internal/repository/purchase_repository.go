package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"affiliate-api/internal/models"
)

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error)
	MarkDistributed(ctx context.Context, id primitive.ObjectID) error
	ListByCoupon(ctx context.Context, coupon string, limit, offset int) ([]*models.Purchase, error)
}

type purchaseRepository struct {
	collection *mongo.Collection
}

func NewPurchaseRepository(db *mongo.Database) PurchaseRepository {
	return &purchaseRepository{
		collection: db.Collection("purchases"),
	}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	purchase.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, purchase)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	purchase.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *purchaseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&purchase)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get purchase by ID: %w", err)
	}
	return &purchase, nil
}

// MarkDistributed flips the distributed flag with a conditional update.
// A zero MatchedCount means another distribution run won the guard.
func (r *purchaseRepository) MarkDistributed(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{
		"_id":         id,
		"distributed": false,
	}
	update := bson.M{
		"$set": bson.M{"distributed": true},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark purchase distributed: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAlreadyDistributed
	}

	return nil
}

func (r *purchaseRepository) ListByCoupon(ctx context.Context, coupon string, limit, offset int) ([]*models.Purchase, error) {
	filter := bson.M{"customer_coupon": coupon}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var purchases []*models.Purchase
	for cursor.Next(ctx) {
		var purchase models.Purchase
		if err := cursor.Decode(&purchase); err != nil {
			continue
		}
		purchases = append(purchases, &purchase)
	}

	return purchases, cursor.Err()
}

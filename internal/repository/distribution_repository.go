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

type DistributionRepository interface {
	CreateMany(ctx context.Context, rows []*models.CommissionDistribution) error
	GetByPurchaseID(ctx context.Context, purchaseID primitive.ObjectID) ([]*models.CommissionDistribution, error)
	ListByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.CommissionDistribution, error)
	CreateIndexes(ctx context.Context) error
}

type distributionRepository struct {
	collection *mongo.Collection
}

func NewDistributionRepository(db *mongo.Database) DistributionRepository {
	return &distributionRepository{
		collection: db.Collection("distributions"),
	}
}

func (r *distributionRepository) CreateMany(ctx context.Context, rows []*models.CommissionDistribution) error {
	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(rows))
	now := time.Now()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		docs = append(docs, row)
	}

	_, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to create distribution rows: %w", err)
	}

	return nil
}

func (r *distributionRepository) GetByPurchaseID(ctx context.Context, purchaseID primitive.ObjectID) ([]*models.CommissionDistribution, error) {
	filter := bson.M{"purchase_id": purchaseID}
	opts := options.Find().SetSort(bson.M{"level": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*models.CommissionDistribution
	for cursor.Next(ctx) {
		var row models.CommissionDistribution
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		rows = append(rows, &row)
	}

	return rows, cursor.Err()
}

func (r *distributionRepository) ListByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.CommissionDistribution, error) {
	filter := bson.M{"affiliate_id": affiliateID}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list distribution rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*models.CommissionDistribution
	for cursor.Next(ctx) {
		var row models.CommissionDistribution
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		rows = append(rows, &row)
	}

	return rows, cursor.Err()
}

// CreateIndexes creates necessary indexes for the distribution collection
func (r *distributionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "purchase_id", Value: 1},
				{Key: "affiliate_id", Value: 1},
				{Key: "level", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "affiliate_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create distribution indexes: %w", err)
	}

	return nil
}

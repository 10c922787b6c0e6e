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

type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	ExistsThisMonth(ctx context.Context, affiliateID primitive.ObjectID, now time.Time) (bool, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status, processedBy, reason string) error
	ListByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.Withdrawal, error)
	CreateIndexes(ctx context.Context) error
}

type withdrawalRepository struct {
	collection *mongo.Collection
}

func NewWithdrawalRepository(db *mongo.Database) WithdrawalRepository {
	return &withdrawalRepository{
		collection: db.Collection("withdrawals"),
	}
}

func (r *withdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	withdrawal.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, withdrawal)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}

	withdrawal.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&withdrawal)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal by ID: %w", err)
	}
	return &withdrawal, nil
}

// ExistsThisMonth reports whether an approved or still-pending withdrawal
// already exists for the affiliate in the calendar month containing now.
func (r *withdrawalRepository) ExistsThisMonth(ctx context.Context, affiliateID primitive.ObjectID, now time.Time) (bool, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	filter := bson.M{
		"affiliate_id": affiliateID,
		"status":       bson.M{"$in": []string{models.WithdrawalPending, models.WithdrawalApproved}},
		"created_at":   bson.M{"$gte": monthStart, "$lt": monthEnd},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check monthly withdrawals: %w", err)
	}

	return count > 0, nil
}

// SetStatus transitions a pending withdrawal. The filter requires pending
// status so terminal withdrawals stay immutable.
func (r *withdrawalRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status, processedBy, reason string) error {
	now := time.Now()
	filter := bson.M{
		"_id":    id,
		"status": models.WithdrawalPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":        status,
			"processed_by":  processedBy,
			"reject_reason": reason,
			"processed_at":  now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrWithdrawalNotPending
	}

	return nil
}

func (r *withdrawalRepository) ListByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID, limit, offset int) ([]*models.Withdrawal, error) {
	filter := bson.M{"affiliate_id": affiliateID}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	var withdrawals []*models.Withdrawal
	for cursor.Next(ctx) {
		var withdrawal models.Withdrawal
		if err := cursor.Decode(&withdrawal); err != nil {
			continue
		}
		withdrawals = append(withdrawals, &withdrawal)
	}

	return withdrawals, cursor.Err()
}

// CreateIndexes creates necessary indexes for the withdrawal collection
func (r *withdrawalRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "affiliate_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal indexes: %w", err)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"affiliate-api/internal/models"
)

// LedgerRepository is the only writer of affiliate balances. A credit lands
// in exactly one of available/frozen; total earnings grow unconditionally.
type LedgerRepository interface {
	Create(ctx context.Context, ledger *models.LedgerBalance) error
	GetByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID) (*models.LedgerBalance, error)
	Credit(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal, blocked bool) error
	DebitAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error
	RestoreAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error
	SetPixKey(ctx context.Context, affiliateID primitive.ObjectID, pixKey string) error
	ResetMonthlyActivity(ctx context.Context, before string) (int64, error)
	CreateIndexes(ctx context.Context) error
}

type ledgerRepository struct {
	collection *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) LedgerRepository {
	return &ledgerRepository{
		collection: db.Collection("ledgers"),
	}
}

func (r *ledgerRepository) Create(ctx context.Context, ledger *models.LedgerBalance) error {
	ledger.CreatedAt = time.Now()
	ledger.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, ledger)
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	ledger.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ledgerRepository) GetByAffiliateID(ctx context.Context, affiliateID primitive.ObjectID) (*models.LedgerBalance, error) {
	var ledger models.LedgerBalance
	err := r.collection.FindOne(ctx, bson.M{"affiliate_id": affiliateID}).Decode(&ledger)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return &ledger, nil
}

// Credit applies a commission credit as a single atomic increment. Blocked
// credits land in the frozen bucket, unblocked in available; total earnings
// and the monthly activity period are stamped either way. Concurrent
// credits against the same ledger never lose each other.
func (r *ledgerRepository) Credit(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal, blocked bool) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("credit amount must be positive")
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"affiliate_id": affiliateID},
		creditUpdate(amount, blocked, time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to credit ledger: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAffiliateNotFound
	}

	return nil
}

// creditUpdate increments exactly one balance bucket plus total earnings in
// one document update.
func creditUpdate(amount decimal.Decimal, blocked bool, now time.Time) bson.M {
	bucket := "available_balance"
	if blocked {
		bucket = "frozen_balance"
	}
	return bson.M{
		"$inc": bson.M{
			bucket:           amount,
			"total_earnings": amount,
		},
		"$set": bson.M{
			"active_period": models.ActivityPeriod(now),
			"updated_at":    now,
		},
	}
}

// DebitAvailable reserves funds for a withdrawal request. The balance guard
// lives in the update filter, so the debit is atomic even against a writer
// that does not hold the per-affiliate lock and the balance can never go
// negative.
func (r *ledgerRepository) DebitAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("debit amount must be positive")
	}

	result, err := r.collection.UpdateOne(ctx,
		debitFilter(affiliateID, amount),
		bson.M{
			"$inc": bson.M{"available_balance": amount.Neg()},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to debit ledger: %w", err)
	}

	if result.MatchedCount == 0 {
		// No match means either a missing ledger or a balance that does
		// not cover the amount.
		if _, getErr := r.GetByAffiliateID(ctx, affiliateID); getErr != nil {
			return getErr
		}
		return models.ErrInsufficientBalance
	}

	return nil
}

// debitFilter matches the ledger only while it still covers the amount.
func debitFilter(affiliateID primitive.ObjectID, amount decimal.Decimal) bson.M {
	return bson.M{
		"affiliate_id":      affiliateID,
		"available_balance": bson.M{"$gte": amount},
	}
}

// RestoreAvailable returns a reserved amount after an admin rejection.
func (r *ledgerRepository) RestoreAvailable(ctx context.Context, affiliateID primitive.ObjectID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("restore amount must be positive")
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"affiliate_id": affiliateID},
		bson.M{
			"$inc": bson.M{"available_balance": amount},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to restore ledger balance: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAffiliateNotFound
	}

	return nil
}

func (r *ledgerRepository) SetPixKey(ctx context.Context, affiliateID primitive.ObjectID, pixKey string) error {
	filter := bson.M{"affiliate_id": affiliateID}
	update := bson.M{
		"$set": bson.M{
			"pix_key":    pixKey,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set pix key: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAffiliateNotFound
	}

	return nil
}

// ResetMonthlyActivity clears activity periods older than the given month
// key. Run by the maintenance scheduler at month rollover.
func (r *ledgerRepository) ResetMonthlyActivity(ctx context.Context, before string) (int64, error) {
	filter := bson.M{
		"active_period": bson.M{"$lt": before, "$ne": ""},
	}
	update := bson.M{
		"$set": bson.M{
			"active_period": "",
			"updated_at":    time.Now(),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly activity: %w", err)
	}

	return result.ModifiedCount, nil
}

// CreateIndexes creates necessary indexes for the ledger collection
func (r *ledgerRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "affiliate_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "active_period", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}

	return nil
}

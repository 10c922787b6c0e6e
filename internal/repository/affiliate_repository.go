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

type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *models.Affiliate) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error)
	GetByCoupon(ctx context.Context, coupon string) (*models.Affiliate, error)
	Update(ctx context.Context, affiliate *models.Affiliate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ClaimSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error
	ReleaseSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error
	CountActiveChildren(ctx context.Context, sponsorID primitive.ObjectID) (int64, error)
	SetPreference(ctx context.Context, id primitive.ObjectID, preference string) error
	TouchLastAccess(ctx context.Context, id primitive.ObjectID) error
	CreateIndexes(ctx context.Context) error
}

type affiliateRepository struct {
	collection *mongo.Collection
}

func NewAffiliateRepository(db *mongo.Database) AffiliateRepository {
	return &affiliateRepository{
		collection: db.Collection("affiliates"),
	}
}

func (r *affiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	affiliate.CreatedAt = time.Now()
	affiliate.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, affiliate)
	if err != nil {
		return fmt.Errorf("failed to create affiliate: %w", err)
	}

	affiliate.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *affiliateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&affiliate)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate by ID: %w", err)
	}
	return &affiliate, nil
}

func (r *affiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.collection.FindOne(ctx, bson.M{"referral_code": code}).Decode(&affiliate)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate by referral code: %w", err)
	}
	return &affiliate, nil
}

func (r *affiliateRepository) GetByCoupon(ctx context.Context, coupon string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.collection.FindOne(ctx, bson.M{"coupon": coupon}).Decode(&affiliate)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAffiliateNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate by coupon: %w", err)
	}
	return &affiliate, nil
}

func (r *affiliateRepository) Update(ctx context.Context, affiliate *models.Affiliate) error {
	affiliate.UpdatedAt = time.Now()

	filter := bson.M{"_id": affiliate.ID}
	update := bson.M{"$set": affiliate}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update affiliate: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAffiliateNotFound
	}

	return nil
}

func (r *affiliateRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete affiliate: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrAffiliateNotFound
	}
	return nil
}

// ClaimSlot assigns childID to a sponsor slot with a conditional update
// that only matches while the slot is still free. A zero MatchedCount
// means a concurrent registration won the slot.
func (r *affiliateRepository) ClaimSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error {
	if !models.ValidSlot(slot) {
		return fmt.Errorf("invalid slot: %s", slot)
	}

	field := "children." + slot
	filter := bson.M{
		"_id":  sponsorID,
		field:  bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": bson.M{
			field:        childID,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to claim slot: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrSlotTaken
	}

	return nil
}

// ReleaseSlot frees a slot, but only if it still holds childID. Used to
// undo a claim when registration fails after placement.
func (r *affiliateRepository) ReleaseSlot(ctx context.Context, sponsorID primitive.ObjectID, slot string, childID primitive.ObjectID) error {
	if !models.ValidSlot(slot) {
		return fmt.Errorf("invalid slot: %s", slot)
	}

	field := "children." + slot
	filter := bson.M{
		"_id": sponsorID,
		field: childID,
	}
	update := bson.M{
		"$unset": bson.M{field: ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("slot %s of sponsor %s not held by child", slot, sponsorID.Hex())
	}

	return nil
}

// CountActiveChildren counts currently-active direct referrals. Read fresh
// at distribution time; qualification is never served from a cache.
func (r *affiliateRepository) CountActiveChildren(ctx context.Context, sponsorID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"sponsor_id": sponsorID,
		"is_active":  true,
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active children: %w", err)
	}

	return count, nil
}

func (r *affiliateRepository) SetPreference(ctx context.Context, id primitive.ObjectID, preference string) error {
	if !models.ValidPreference(preference) {
		return fmt.Errorf("invalid preference: %s", preference)
	}

	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"preference": preference,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}

	if result.MatchedCount == 0 {
		return models.ErrAffiliateNotFound
	}

	return nil
}

func (r *affiliateRepository) TouchLastAccess(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"last_access_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to touch last access: %w", err)
	}

	return nil
}

// CreateIndexes creates necessary indexes for the affiliate collection
func (r *affiliateRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "referral_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "coupon", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "sponsor_id", Value: 1},
				{Key: "is_active", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "last_access_at", Value: -1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create affiliate indexes: %w", err)
	}

	return nil
}

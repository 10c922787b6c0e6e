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

// SettingsRepository serves the commission table. Reads always hit the
// store so admin edits apply to subsequent purchases only, never to rows
// already written.
type SettingsRepository interface {
	GetLatest(ctx context.Context) (*models.CommissionSettings, error)
	Create(ctx context.Context, settings *models.CommissionSettings) error
}

type settingsRepository struct {
	collection *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) SettingsRepository {
	return &settingsRepository{
		collection: db.Collection("commission_settings"),
	}
}

// GetLatest returns the highest-version settings document, or nil when the
// table was never configured (callers fall back to defaults).
func (r *settingsRepository) GetLatest(ctx context.Context) (*models.CommissionSettings, error) {
	opts := options.FindOne().SetSort(bson.M{"version": -1})

	var settings models.CommissionSettings
	err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get commission settings: %w", err)
	}

	return &settings, nil
}

// Create writes a new settings version. The previous versions are kept for
// audit; distributions reference the table as read at distribution time.
func (r *settingsRepository) Create(ctx context.Context, settings *models.CommissionSettings) error {
	latest, err := r.GetLatest(ctx)
	if err != nil {
		return err
	}

	settings.Version = 1
	if latest != nil {
		settings.Version = latest.Version + 1
	}
	settings.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to create commission settings: %w", err)
	}

	settings.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lma-docpulse/internal/domain/alert"
)

const (
	// AlertCollectionName is the name of the alert collection in MongoDB
	AlertCollectionName = "alerts"
)

// AlertRepository implements the alert.Registry interface for MongoDB
type AlertRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAlertRepository creates a new MongoDB alert repository
func NewAlertRepository(logger *slog.Logger, db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

var _ alert.Registry = (*AlertRepository)(nil)

// Add validates and upserts the alert by id, so re-adding an id replaces it
func (r *AlertRepository) Add(ctx context.Context, a *alert.Alert) error {
	if err := a.Prepare(); err != nil {
		return err
	}

	collection := r.db.Collection(AlertCollectionName)
	_, err := collection.ReplaceOne(ctx, bson.M{"_id": a.ID}, a, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to store alert",
			"alert_id", a.ID.String(),
			"severity", string(a.Severity),
			"error", err)
		return fmt.Errorf("failed to store alert: %w", err)
	}

	return nil
}

// Get retrieves an alert by id
func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	collection := r.db.Collection(AlertCollectionName)

	var a alert.Alert
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, alert.ErrAlertNotFound{ID: id}
		}
		r.logger.Error("Failed to get alert", "alert_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return &a, nil
}

// List returns all alerts oldest first
func (r *AlertRepository) List(ctx context.Context) ([]*alert.Alert, error) {
	collection := r.db.Collection(AlertCollectionName)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list alerts", "error", err)
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := []*alert.Alert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		r.logger.Error("Failed to decode alerts", "error", err)
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}

	return alerts, nil
}

// EnsureIndexes creates the index backing List ordering
func (r *AlertRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(AlertCollectionName)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create alert indexes: %w", err)
	}
	return nil
}

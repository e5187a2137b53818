package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHookRepository implements IntegrationHookRepository using
// MongoDB.
type MongoHookRepository struct {
	collection *mongo.Collection
}

// NewMongoHookRepository creates a new MongoDB integration hook
// repository.
func NewMongoHookRepository(db *mongo.Database) ports.IntegrationHookRepository {
	return &MongoHookRepository{
		collection: db.Collection("integration_hooks"),
	}
}

// GetByID retrieves a hook by its id.
func (r *MongoHookRepository) GetByID(ctx context.Context, id string) (*domain.IntegrationHook, error) {
	var hook domain.IntegrationHook
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&hook)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration hook: %w", err)
	}
	return &hook, nil
}

// FindEnabled retrieves the enabled hook for an app and reference id.
func (r *MongoHookRepository) FindEnabled(ctx context.Context, appID, referenceID string) (*domain.IntegrationHook, error) {
	var hook domain.IntegrationHook
	filter := bson.M{
		"app_id":       appID,
		"reference_id": referenceID,
		"status":       domain.HookStatusEnabled,
	}
	err := r.collection.FindOne(ctx, filter).Decode(&hook)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find integration hook: %w", err)
	}
	return &hook, nil
}

// ListByApp retrieves every hook for an app regardless of status.
func (r *MongoHookRepository) ListByApp(ctx context.Context, appID string) ([]*domain.IntegrationHook, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"app_id": appID})
	if err != nil {
		return nil, fmt.Errorf("failed to list integration hooks: %w", err)
	}
	defer cursor.Close(ctx)

	var hooks []*domain.IntegrationHook
	for cursor.Next(ctx) {
		var hook domain.IntegrationHook
		if err := cursor.Decode(&hook); err != nil {
			return nil, fmt.Errorf("failed to decode integration hook: %w", err)
		}
		hooks = append(hooks, &hook)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return hooks, nil
}

// SampleByApp returns up to limit hooks plus the total count for
// diagnostics when a shop-domain lookup misses.
func (r *MongoHookRepository) SampleByApp(ctx context.Context, appID string, limit int) ([]ports.HookSample, int64, error) {
	filter := bson.M{"app_id": appID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count integration hooks: %w", err)
	}

	opts := options.Find().SetLimit(int64(limit)).SetProjection(bson.M{
		"_id":          1,
		"reference_id": 1,
		"status":       1,
	})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to sample integration hooks: %w", err)
	}
	defer cursor.Close(ctx)

	var samples []ports.HookSample
	for cursor.Next(ctx) {
		var doc struct {
			ID          string            `bson:"_id"`
			ReferenceID string            `bson:"reference_id"`
			Status      domain.HookStatus `bson:"status"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode hook sample: %w", err)
		}
		samples = append(samples, ports.HookSample{
			ID:          doc.ID,
			ReferenceID: doc.ReferenceID,
			Status:      doc.Status,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("cursor error: %w", err)
	}
	return samples, total, nil
}

// UpdateSettings applies set/unset mutations to individual settings
// keys. Untouched keys survive; this is what keeps audit history on
// the hook across subscription and redaction updates.
func (r *MongoHookRepository) UpdateSettings(ctx context.Context, hookID string, set map[string]interface{}, unset []string) error {
	update := bson.M{}

	setDoc := bson.M{"updated_at": time.Now()}
	for k, v := range set {
		setDoc["settings."+k] = v
	}
	update["$set"] = setDoc

	if len(unset) > 0 {
		unsetDoc := bson.M{}
		for _, k := range unset {
			unsetDoc["settings."+k] = ""
		}
		update["$unset"] = unsetDoc
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": hookID}, update)
	if err != nil {
		return fmt.Errorf("failed to update hook settings: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("integration hook not found: %s", hookID)
	}
	return nil
}

// Disable marks a hook disabled.
func (r *MongoHookRepository) Disable(ctx context.Context, hookID string) error {
	update := bson.M{"$set": bson.M{
		"status":     domain.HookStatusDisabled,
		"updated_at": time.Now(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": hookID}, update)
	if err != nil {
		return fmt.Errorf("failed to disable hook: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("integration hook not found: %s", hookID)
	}
	return nil
}

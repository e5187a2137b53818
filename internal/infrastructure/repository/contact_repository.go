package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoContactRepository implements ContactRepository using MongoDB.
type MongoContactRepository struct {
	collection *mongo.Collection
}

// NewMongoContactRepository creates a new MongoDB contact repository.
func NewMongoContactRepository(db *mongo.Database) ports.ContactRepository {
	return &MongoContactRepository{
		collection: db.Collection("contacts"),
	}
}

// GetByID retrieves a contact scoped to its tenant.
func (r *MongoContactRepository) GetByID(ctx context.Context, accountID, contactID int64) (*domain.Contact, error) {
	var contact domain.Contact
	filter := bson.M{"account_id": accountID, "id": contactID}
	err := r.collection.FindOne(ctx, filter).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// FindByAttribute retrieves the contact whose custom attribute key
// equals value.
func (r *MongoContactRepository) FindByAttribute(ctx context.Context, accountID int64, key, value string) (*domain.Contact, error) {
	var contact domain.Contact
	filter := bson.M{
		"account_id":               accountID,
		"custom_attributes." + key: value,
	}
	err := r.collection.FindOne(ctx, filter).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by attribute: %w", err)
	}
	return &contact, nil
}

// FindByEmail retrieves a contact by case-insensitive email match.
func (r *MongoContactRepository) FindByEmail(ctx context.Context, accountID int64, email string) (*domain.Contact, error) {
	var contact domain.Contact
	filter := bson.M{
		"account_id": accountID,
		"email": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(email) + "$",
			Options: "i",
		},
	}
	err := r.collection.FindOne(ctx, filter).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return &contact, nil
}

// ListUnredacted retrieves a batch of the tenant's contacts with no
// redacted_at, ordered by id, starting after afterID.
func (r *MongoContactRepository) ListUnredacted(ctx context.Context, accountID int64, afterID int64, limit int) ([]*domain.Contact, error) {
	filter := bson.M{
		"account_id":  accountID,
		"redacted_at": bson.M{"$exists": false},
		"id":          bson.M{"$gt": afterID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list unredacted contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []*domain.Contact
	for cursor.Next(ctx) {
		var contact domain.Contact
		if err := cursor.Decode(&contact); err != nil {
			return nil, fmt.Errorf("failed to decode contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return contacts, nil
}

// ApplyRedaction overwrites the contact's identity fields in one
// UpdateOne. Mongo applies the $set atomically at the document level,
// which is the transaction boundary the redaction design relies on.
func (r *MongoContactRepository) ApplyRedaction(ctx context.Context, accountID, contactID int64, u ports.ContactRedactionUpdate) error {
	filter := bson.M{"account_id": accountID, "id": contactID}
	update := bson.M{"$set": bson.M{
		"name":              u.Name,
		"email":             u.Email,
		"phone_number":      u.PhoneNumber,
		"custom_attributes": u.CustomAttributes,
		"additional_emails": []string{},
		"redacted_at":       u.RedactedAt,
		"updated_at":        time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to apply redaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("contact not found: account=%d contact=%d", accountID, contactID)
	}
	return nil
}

// MarkDeferred records a deferred redaction on the contact's custom
// attributes without touching identity fields.
func (r *MongoContactRepository) MarkDeferred(ctx context.Context, accountID, contactID int64, reason string, at time.Time) error {
	filter := bson.M{"account_id": accountID, "id": contactID}
	update := bson.M{"$set": bson.M{
		"custom_attributes.redaction_deferred":        "true",
		"custom_attributes.redaction_deferred_reason": reason,
		"custom_attributes.redaction_deferred_at":     at.UTC().Format(time.RFC3339),
		"updated_at": time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark redaction deferred: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("contact not found: account=%d contact=%d", accountID, contactID)
	}
	return nil
}

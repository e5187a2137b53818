package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoConversationRepository implements ConversationRepository using
// MongoDB. Messages are embedded in the conversation document.
type MongoConversationRepository struct {
	collection *mongo.Collection
}

// NewMongoConversationRepository creates a new MongoDB conversation
// repository.
func NewMongoConversationRepository(db *mongo.Database) ports.ConversationRepository {
	return &MongoConversationRepository{
		collection: db.Collection("conversations"),
	}
}

// ListByContact retrieves every conversation owned by the contact.
func (r *MongoConversationRepository) ListByContact(ctx context.Context, accountID, contactID int64) ([]*domain.Conversation, error) {
	filter := bson.M{"account_id": accountID, "contact_id": contactID}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []*domain.Conversation
	for cursor.Next(ctx) {
		var conv domain.Conversation
		if err := cursor.Decode(&conv); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return conversations, nil
}

// CountByContact counts the contact's conversations.
func (r *MongoConversationRepository) CountByContact(ctx context.Context, accountID, contactID int64) (int64, error) {
	filter := bson.M{"account_id": accountID, "contact_id": contactID}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// MergeAttributes merges keys into additional_attributes, preserving
// everything already there.
func (r *MongoConversationRepository) MergeAttributes(ctx context.Context, accountID, conversationID int64, attrs map[string]interface{}) error {
	setDoc := bson.M{"updated_at": time.Now()}
	for k, v := range attrs {
		setDoc["additional_attributes."+k] = v
	}

	filter := bson.M{"account_id": accountID, "id": conversationID}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": setDoc})
	if err != nil {
		return fmt.Errorf("failed to merge conversation attributes: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("conversation not found: account=%d conversation=%d", accountID, conversationID)
	}
	return nil
}

// AppendMessage appends a message to the conversation.
func (r *MongoConversationRepository) AppendMessage(ctx context.Context, accountID, conversationID int64, msg domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	filter := bson.M{"account_id": accountID, "id": conversationID}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("conversation not found: account=%d conversation=%d", accountID, conversationID)
	}
	return nil
}

// Create inserts a conversation, used for audit records.
func (r *MongoConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, conv)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

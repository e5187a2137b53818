package ports

import (
	"context"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
)

// TenantRepository defines tenant persistence.
type TenantRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
}

// HookSample is a diagnostic view of an existing hook, used when a
// shop-domain lookup misses.
type HookSample struct {
	ID          string
	ReferenceID string
	Status      domain.HookStatus
}

// IntegrationHookRepository defines integration hook persistence.
type IntegrationHookRepository interface {
	// GetByID retrieves a hook by its id; nil when absent.
	GetByID(ctx context.Context, id string) (*domain.IntegrationHook, error)

	// FindEnabled retrieves the enabled hook for an app and external
	// reference id; nil when absent.
	FindEnabled(ctx context.Context, appID, referenceID string) (*domain.IntegrationHook, error)

	// ListByApp retrieves every hook for an app regardless of status.
	ListByApp(ctx context.Context, appID string) ([]*domain.IntegrationHook, error)

	// SampleByApp returns up to limit hooks for an app plus the total
	// count, for diagnostics.
	SampleByApp(ctx context.Context, appID string, limit int) ([]HookSample, int64, error)

	// UpdateSettings applies set/unset mutations to individual settings
	// keys without touching the rest of the settings map.
	UpdateSettings(ctx context.Context, hookID string, set map[string]interface{}, unset []string) error

	// Disable marks a hook disabled.
	Disable(ctx context.Context, hookID string) error
}

// ContactRepository defines contact persistence.
type ContactRepository interface {
	GetByID(ctx context.Context, accountID, contactID int64) (*domain.Contact, error)

	// FindByAttribute retrieves the contact whose custom attribute key
	// equals value; nil when absent.
	FindByAttribute(ctx context.Context, accountID int64, key, value string) (*domain.Contact, error)

	// FindByEmail retrieves a contact by case-insensitive email match;
	// nil when absent.
	FindByEmail(ctx context.Context, accountID int64, email string) (*domain.Contact, error)

	// ListUnredacted retrieves a batch of the tenant's contacts with no
	// redacted_at, ordered by id, starting after afterID.
	ListUnredacted(ctx context.Context, accountID int64, afterID int64, limit int) ([]*domain.Contact, error)

	// ApplyRedaction overwrites the contact's identity fields in a
	// single atomic update. All fields succeed together or none do.
	ApplyRedaction(ctx context.Context, accountID, contactID int64, u ContactRedactionUpdate) error

	// MarkDeferred records that redaction was deferred without touching
	// identity fields.
	MarkDeferred(ctx context.Context, accountID, contactID int64, reason string, at time.Time) error
}

// ContactRedactionUpdate is the atomic field set applied by redaction.
type ContactRedactionUpdate struct {
	Name             string
	Email            string
	PhoneNumber      string
	CustomAttributes map[string]interface{}
	RedactedAt       time.Time
}

// ConversationRepository defines conversation persistence.
type ConversationRepository interface {
	ListByContact(ctx context.Context, accountID, contactID int64) ([]*domain.Conversation, error)
	CountByContact(ctx context.Context, accountID, contactID int64) (int64, error)

	// MergeAttributes merges keys into the conversation's additional
	// attributes, preserving existing ones.
	MergeAttributes(ctx context.Context, accountID, conversationID int64, attrs map[string]interface{}) error

	// AppendMessage appends a message to a conversation.
	AppendMessage(ctx context.Context, accountID, conversationID int64, msg domain.Message) error

	// Create creates a conversation (used for audit records).
	Create(ctx context.Context, conv *domain.Conversation) error
}

// WebhookEventRepository logs verified inbound webhooks.
type WebhookEventRepository interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExportService(contacts *fakeContacts, conversations *fakeConversations, n *fakeNotifier) *ExportService {
	return NewExportService(contacts, conversations, n, metrics.NewNop(), zerolog.Nop())
}

func exportContact() *domain.Contact {
	return &domain.Contact{
		ID:          10,
		AccountID:   1,
		Name:        "Jordan Baker",
		Email:       "jordan@example.com",
		PhoneNumber: "+14155552671",
		CustomAttributes: map[string]interface{}{
			"shopify_customer_id": "777",
			"loyalty_tier":        "gold",
			"api_token":           "tok_123",
		},
	}
}

func TestFindContactByCustomerID(t *testing.T) {
	contacts := newFakeContacts(exportContact())
	svc := testExportService(contacts, newFakeConversations(), &fakeNotifier{})

	contact, err := svc.FindContact(context.Background(), 1, 777, "")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, int64(10), contact.ID)
}

func TestFindContactFallsBackToEmail(t *testing.T) {
	contacts := newFakeContacts(exportContact())
	svc := testExportService(contacts, newFakeConversations(), &fakeNotifier{})

	contact, err := svc.FindContact(context.Background(), 1, 999, "JORDAN@example.com")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, int64(10), contact.ID)
}

func TestCollectNotFoundIsExplicit(t *testing.T) {
	svc := testExportService(newFakeContacts(), newFakeConversations(), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 999, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Nil(t, result.Export)
}

func TestCollectSanitizesProfile(t *testing.T) {
	contacts := newFakeContacts(exportContact())
	svc := testExportService(contacts, newFakeConversations(), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 777, "")
	require.NoError(t, err)
	require.True(t, result.Found)

	attrs := result.Export.Profile.CustomAttributes
	assert.Equal(t, "gold", attrs["loyalty_tier"])
	assert.NotContains(t, attrs, "api_token")
}

func TestCollectMasksMessageContent(t *testing.T) {
	contact := exportContact()
	conv := &domain.Conversation{
		ID: 100, AccountID: 1, ContactID: 10,
		Status:  domain.ConversationStatusResolved,
		Channel: "Channel::Email",
		Messages: []domain.Message{
			{ID: 1, Content: "reach me at other.person@example.org", CreatedAt: time.Now()},
			{ID: 2, Content: "card was 4111 1111 1111 1111 and ssn 123-45-6789", CreatedAt: time.Now()},
			{ID: 3, Content: "internal note", Private: true, CreatedAt: time.Now()},
		},
	}
	svc := testExportService(newFakeContacts(contact), newFakeConversations(conv), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 777, "")
	require.NoError(t, err)
	require.Len(t, result.Export.Conversations, 1)

	exported := result.Export.Conversations[0]
	// Private notes are excluded from the conversation view.
	require.Len(t, exported.Messages, 2)
	assert.NotContains(t, exported.Messages[0].Content, "other.person@example.org")
	assert.Contains(t, exported.Messages[0].Content, "[EMAIL REDACTED]")
	assert.NotContains(t, exported.Messages[1].Content, "4111")
	assert.NotContains(t, exported.Messages[1].Content, "123-45-6789")
	assert.Equal(t, 3, exported.MessageCount)
}

func TestCollectCapsMessagesPerConversation(t *testing.T) {
	contact := exportContact()
	conv := &domain.Conversation{
		ID: 100, AccountID: 1, ContactID: 10,
		Status: domain.ConversationStatusResolved,
	}
	for i := 0; i < 80; i++ {
		conv.Messages = append(conv.Messages, domain.Message{
			ID:        int64(i + 1),
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		})
	}
	svc := testExportService(newFakeContacts(contact), newFakeConversations(conv), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 777, "")
	require.NoError(t, err)

	exported := result.Export.Conversations[0]
	assert.Len(t, exported.Messages, maxExportMessages)
	// The newest messages are kept.
	assert.Equal(t, "message 80", exported.Messages[len(exported.Messages)-1].Content)
	assert.Equal(t, 80, exported.MessageCount)
}

func TestCollectCapAppliesToVisibleMessagesOnly(t *testing.T) {
	contact := exportContact()
	conv := &domain.Conversation{
		ID: 100, AccountID: 1, ContactID: 10,
		Status: domain.ConversationStatusResolved,
	}
	// 60 visible messages interleaved with 60 private notes. The cap
	// counts visible messages, so the export still carries 50 of them.
	for i := 0; i < 60; i++ {
		conv.Messages = append(conv.Messages,
			domain.Message{
				ID:        int64(2*i + 1),
				Content:   fmt.Sprintf("reply %d", i+1),
				CreatedAt: time.Now().Add(time.Duration(2*i) * time.Minute),
			},
			domain.Message{
				ID:        int64(2*i + 2),
				Content:   fmt.Sprintf("note %d", i+1),
				Private:   true,
				CreatedAt: time.Now().Add(time.Duration(2*i+1) * time.Minute),
			})
	}
	svc := testExportService(newFakeContacts(contact), newFakeConversations(conv), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 777, "")
	require.NoError(t, err)

	exported := result.Export.Conversations[0]
	require.Len(t, exported.Messages, maxExportMessages)
	for _, msg := range exported.Messages {
		assert.NotContains(t, msg.Content, "note")
	}
	assert.Equal(t, "reply 60", exported.Messages[len(exported.Messages)-1].Content)
}

func TestCollectBuildsInteractionHistory(t *testing.T) {
	contact := exportContact()
	resolvedAt := time.Now()
	conv1 := &domain.Conversation{
		ID: 100, AccountID: 1, ContactID: 10,
		Status:     domain.ConversationStatusResolved,
		Channel:    "Channel::Email",
		CreatedAt:  resolvedAt.Add(-48 * time.Hour),
		ResolvedAt: &resolvedAt,
		Messages: []domain.Message{
			{ID: 1, Content: "shipping delayed shipping shipping", CreatedAt: resolvedAt.Add(-48 * time.Hour)},
			{ID: 2, Content: "escalated to warehouse team", Private: true, CreatedAt: resolvedAt.Add(-47 * time.Hour)},
		},
	}
	conv2 := &domain.Conversation{
		ID: 101, AccountID: 1, ContactID: 10,
		Status:    domain.ConversationStatusOpen,
		Channel:   "Channel::Api",
		CreatedAt: resolvedAt.Add(-24 * time.Hour),
	}
	svc := testExportService(newFakeContacts(contact), newFakeConversations(conv1, conv2), &fakeNotifier{})

	result, err := svc.Collect(context.Background(), 1, 777, "")
	require.NoError(t, err)

	history := result.Export.InteractionHistory
	assert.Equal(t, 2, history.Summary.TotalConversations)
	assert.Equal(t, 1, history.Summary.ByStatus["resolved"])
	assert.Equal(t, 1, history.Summary.ByChannel["Channel::Api"])
	assert.InDelta(t, 0.5, history.Summary.ResolutionRate, 0.001)
	assert.Contains(t, history.Summary.TopKeywords, "shipping")
	require.Len(t, history.PrivateNoteExcerpts, 1)
	assert.Contains(t, history.PrivateNoteExcerpts[0], "escalated")

	// started, started, resolved in chronological order
	require.Len(t, history.Timeline, 3)
	assert.Equal(t, "conversation_started", history.Timeline[0].Event)
	assert.Equal(t, "conversation_resolved", history.Timeline[2].Event)
}

func TestFulfillDeliversFoundAndNotFound(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := testExportService(newFakeContacts(exportContact()), newFakeConversations(), notifier)
	tenant := &domain.Tenant{ID: 1, Status: domain.TenantStatusActive, AdminEmail: "admin@acme.test"}

	require.NoError(t, svc.Fulfill(context.Background(), tenant, "acme.myshopify.com", 777, ""))
	require.NoError(t, svc.Fulfill(context.Background(), tenant, "acme.myshopify.com", 999, "nobody@example.com"))

	require.Len(t, notifier.deliveries, 2)
	assert.True(t, notifier.deliveries[0].delivery.Found)
	assert.NotNil(t, notifier.deliveries[0].delivery.Export)
	assert.False(t, notifier.deliveries[1].delivery.Found)
}

func TestFulfillSurfacesDeliveryFailure(t *testing.T) {
	notifier := &fakeNotifier{deliverErr: assert.AnError}
	svc := testExportService(newFakeContacts(exportContact()), newFakeConversations(), notifier)
	tenant := &domain.Tenant{ID: 1, Status: domain.TenantStatusActive}

	err := svc.Fulfill(context.Background(), tenant, "acme.myshopify.com", 777, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

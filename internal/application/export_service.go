package application

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

const (
	// maxExportMessages caps messages included per conversation.
	maxExportMessages = 50

	// maxTimelineEvents caps the chronological event timeline.
	maxTimelineEvents = 50

	// shopifyCustomerIDKey is the custom attribute that stores the
	// external customer id on a contact.
	shopifyCustomerIDKey = "shopify_customer_id"
)

// Content-masking patterns applied to exported message bodies. Export
// content is for the requesting customer, but other parties' emails and
// payment identifiers quoted in messages must not leak through it.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	keywordPattern = regexp.MustCompile(`[a-z]{4,}`)
)

// stopwords excluded from naive keyword extraction.
var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"your": true, "will": true, "would": true, "about": true, "there": true,
	"their": true, "been": true, "were": true, "when": true, "what": true,
	"just": true, "like": true, "please": true, "thanks": true, "thank": true,
	"hello": true, "regards": true,
}

// CustomerExport is the bounded data-request export for one contact.
type CustomerExport struct {
	GeneratedAt        time.Time            `json:"generated_at"`
	Profile            ExportProfile        `json:"profile"`
	Conversations      []ExportConversation `json:"conversations"`
	InteractionHistory InteractionHistory   `json:"interaction_history"`
}

// ExportProfile is the contact's basic identity plus sanitized custom
// attributes.
type ExportProfile struct {
	ID               int64                  `json:"id"`
	Name             string                 `json:"name"`
	Email            string                 `json:"email"`
	PhoneNumber      string                 `json:"phone_number,omitempty"`
	AdditionalEmails []string               `json:"additional_emails,omitempty"`
	CustomAttributes map[string]interface{} `json:"custom_attributes,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ExportConversation carries one conversation's metadata and its most
// recent messages.
type ExportConversation struct {
	ID           int64           `json:"id"`
	Status       string          `json:"status"`
	Channel      string          `json:"channel"`
	AssigneeName string          `json:"assignee_name,omitempty"`
	Labels       []string        `json:"labels,omitempty"`
	MessageCount int             `json:"message_count"`
	Messages     []ExportMessage `json:"messages"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}

// ExportMessage is a single sanitized message.
type ExportMessage struct {
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	SenderName     string    `json:"sender_name,omitempty"`
	AttachmentURLs []string  `json:"attachment_urls,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// InteractionHistory summarizes how the contact interacted with
// support.
type InteractionHistory struct {
	PrivateNoteExcerpts []string        `json:"private_note_excerpts,omitempty"`
	Summary             ExportSummary   `json:"summary"`
	Timeline            []TimelineEvent `json:"timeline"`
}

// ExportSummary holds aggregate conversation statistics.
type ExportSummary struct {
	TotalConversations int            `json:"total_conversations"`
	ByStatus           map[string]int `json:"by_status"`
	ByChannel          map[string]int `json:"by_channel"`
	ResolutionRate     float64        `json:"resolution_rate"`
	TopKeywords        []string       `json:"top_keywords,omitempty"`
}

// TimelineEvent is one conversation-start or conversation-resolve
// event.
type TimelineEvent struct {
	At             time.Time `json:"at"`
	Event          string    `json:"event"`
	ConversationID int64     `json:"conversation_id"`
}

// ExportResult pairs the export with its found/not-found outcome.
type ExportResult struct {
	Found  bool
	Export *CustomerExport
}

// ExportService assembles customer data exports for compliance data
// requests.
type ExportService struct {
	contacts      ports.ContactRepository
	conversations ports.ConversationRepository
	notifier      ports.ComplianceNotifier
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

// NewExportService creates an export service.
func NewExportService(
	contacts ports.ContactRepository,
	conversations ports.ConversationRepository,
	notifier ports.ComplianceNotifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ExportService {
	return &ExportService{
		contacts:      contacts,
		conversations: conversations,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// FindContact locates the contact a data request refers to. Primary
// lookup is the stored external customer id; fallback is a
// case-insensitive email match. nil means no data held.
func (s *ExportService) FindContact(ctx context.Context, accountID int64, customerID int64, email string) (*domain.Contact, error) {
	if customerID != 0 {
		contact, err := s.contacts.FindByAttribute(ctx, accountID, shopifyCustomerIDKey, strconv.FormatInt(customerID, 10))
		if err != nil {
			return nil, fmt.Errorf("failed customer id lookup: %w", err)
		}
		if contact != nil {
			return contact, nil
		}
	}
	if email != "" {
		contact, err := s.contacts.FindByEmail(ctx, accountID, email)
		if err != nil {
			return nil, fmt.Errorf("failed email lookup: %w", err)
		}
		return contact, nil
	}
	return nil, nil
}

// Collect assembles the export for a data request. A nil contact yields
// an explicit not-found result rather than an empty export.
func (s *ExportService) Collect(ctx context.Context, accountID int64, customerID int64, email string) (*ExportResult, error) {
	contact, err := s.FindContact(ctx, accountID, customerID, email)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		s.logger.Info().
			Int64("account_id", accountID).
			Int64("customer_id", customerID).
			Msg("data request matched no contact")
		return &ExportResult{Found: false}, nil
	}

	conversations, err := s.conversations.ListByContact(ctx, accountID, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	export := &CustomerExport{
		GeneratedAt:        s.now().UTC(),
		Profile:            buildProfile(contact),
		Conversations:      buildConversations(conversations),
		InteractionHistory: buildInteractionHistory(conversations),
	}
	return &ExportResult{Found: true, Export: export}, nil
}

// Fulfill collects the export and delivers it to the tenant operator.
// Delivery failure is legal-deadline-sensitive: it is logged as
// critical and returned so job-level retry fires, never swallowed.
func (s *ExportService) Fulfill(ctx context.Context, tenant *domain.Tenant, shopDomain string, customerID int64, email string) error {
	result, err := s.Collect(ctx, tenant.ID, customerID, email)
	if err != nil {
		s.metrics.ExportJobs.WithLabelValues("failed").Inc()
		return err
	}

	delivery := ports.ExportDelivery{
		Tenant:     tenant,
		ShopDomain: shopDomain,
		CustomerID: customerID,
		Email:      email,
		Found:      result.Found,
		Export:     result.Export,
	}
	if err := s.notifier.DeliverExport(ctx, delivery); err != nil {
		s.metrics.ExportJobs.WithLabelValues("delivery_failed").Inc()
		s.logger.Error().Err(err).
			Int64("account_id", tenant.ID).
			Int64("customer_id", customerID).
			Str("shop_domain", shopDomain).
			Msg("CRITICAL: data export delivery failed, manual follow-up required")
		return fmt.Errorf("export delivery failed: %w", err)
	}

	outcome := "not_found"
	if result.Found {
		outcome = "delivered"
	}
	s.metrics.ExportJobs.WithLabelValues(outcome).Inc()
	return nil
}

func buildProfile(contact *domain.Contact) ExportProfile {
	attrs := make(map[string]interface{}, len(contact.CustomAttributes))
	for key, value := range contact.CustomAttributes {
		// Deny-list removal, not masking: credential-looking keys are
		// dropped from the export outright.
		if IsSensitiveExportKey(key) {
			continue
		}
		attrs[key] = value
	}
	return ExportProfile{
		ID:               contact.ID,
		Name:             contact.Name,
		Email:            contact.Email,
		PhoneNumber:      contact.PhoneNumber,
		AdditionalEmails: contact.AdditionalEmails,
		CustomAttributes: attrs,
		CreatedAt:        contact.CreatedAt,
	}
}

func buildConversations(conversations []*domain.Conversation) []ExportConversation {
	out := make([]ExportConversation, 0, len(conversations))
	for _, conv := range conversations {
		// Private notes are filtered before the cap so a note-heavy
		// conversation still exports its full quota of visible messages.
		visible := make([]domain.Message, 0, len(conv.Messages))
		for _, msg := range conv.Messages {
			if !msg.Private {
				visible = append(visible, msg)
			}
		}
		messages := recentMessages(visible, maxExportMessages)
		exported := make([]ExportMessage, 0, len(messages))
		for _, msg := range messages {
			urls := make([]string, 0, len(msg.Attachments))
			for _, att := range msg.Attachments {
				urls = append(urls, att.DataURL)
			}
			exported = append(exported, ExportMessage{
				Content:        sanitizeContent(msg.Content),
				MessageType:    string(msg.MessageType),
				SenderName:     msg.SenderName,
				AttachmentURLs: urls,
				CreatedAt:      msg.CreatedAt,
			})
		}
		out = append(out, ExportConversation{
			ID:           conv.ID,
			Status:       string(conv.Status),
			Channel:      conv.Channel,
			AssigneeName: conv.AssigneeName,
			Labels:       conv.Labels,
			MessageCount: len(conv.Messages),
			Messages:     exported,
			CreatedAt:    conv.CreatedAt,
			ResolvedAt:   conv.ResolvedAt,
		})
	}
	return out
}

func buildInteractionHistory(conversations []*domain.Conversation) InteractionHistory {
	summary := ExportSummary{
		TotalConversations: len(conversations),
		ByStatus:           map[string]int{},
		ByChannel:          map[string]int{},
	}

	var excerpts []string
	var events []TimelineEvent
	keywordCounts := map[string]int{}
	resolved := 0

	for _, conv := range conversations {
		summary.ByStatus[string(conv.Status)]++
		summary.ByChannel[conv.Channel]++
		if conv.Status == domain.ConversationStatusResolved {
			resolved++
		}

		events = append(events, TimelineEvent{
			At: conv.CreatedAt, Event: "conversation_started", ConversationID: conv.ID,
		})
		if conv.ResolvedAt != nil {
			events = append(events, TimelineEvent{
				At: *conv.ResolvedAt, Event: "conversation_resolved", ConversationID: conv.ID,
			})
		}

		for _, msg := range conv.Messages {
			if msg.Private {
				excerpts = append(excerpts, excerpt(sanitizeContent(msg.Content), 120))
				continue
			}
			for _, word := range keywordPattern.FindAllString(strings.ToLower(msg.Content), -1) {
				if !stopwords[word] {
					keywordCounts[word]++
				}
			}
		}
	}

	if summary.TotalConversations > 0 {
		summary.ResolutionRate = float64(resolved) / float64(summary.TotalConversations)
	}
	summary.TopKeywords = topKeywords(keywordCounts, 5)

	sort.Slice(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	if len(events) > maxTimelineEvents {
		events = events[:maxTimelineEvents]
	}

	return InteractionHistory{
		PrivateNoteExcerpts: excerpts,
		Summary:             summary,
		Timeline:            events,
	}
}

// recentMessages returns up to limit of the newest messages, oldest
// first.
func recentMessages(messages []domain.Message, limit int) []domain.Message {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

// sanitizeContent masks emails, card-number-like and SSN-like digit
// patterns in exported message text.
func sanitizeContent(content string) string {
	content = emailPattern.ReplaceAllString(content, "[EMAIL REDACTED]")
	content = cardPattern.ReplaceAllString(content, "[NUMBER REDACTED]")
	content = ssnPattern.ReplaceAllString(content, "[NUMBER REDACTED]")
	return content
}

func excerpt(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

func topKeywords(counts map[string]int, n int) []string {
	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

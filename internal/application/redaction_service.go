package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultRetentionWindow bounds how far back the transaction-activity
// safeguard looks.
const DefaultRetentionWindow = 90 * 24 * time.Hour

// RedactionRequest describes one contact redaction.
type RedactionRequest struct {
	// Reason lands in the contact's redaction metadata, e.g.
	// "customer_redact" or "shop_redact".
	Reason string

	// ShopDomain, when set, marks a shop-wide run and is recorded in
	// the contact's redaction metadata.
	ShopDomain string
}

// RedactionResult reports what a redaction did.
type RedactionResult struct {
	Skipped       bool
	Deferred      bool
	DeferReason   string
	Limited       bool
	PreservedKeys []string
}

// RedactionService performs contact-level and shop-wide PII
// anonymization with safeguard checks and post-mutation integrity
// verification.
type RedactionService struct {
	contacts        ports.ContactRepository
	conversations   ports.ConversationRepository
	hooks           ports.IntegrationHookRepository
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	batchSize       int
	interBatchPause time.Duration
	retentionWindow time.Duration
	now             func() time.Time
}

// NewRedactionService creates a redaction service.
func NewRedactionService(
	contacts ports.ContactRepository,
	conversations ports.ConversationRepository,
	hooks ports.IntegrationHookRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
	batchSize int,
	interBatchPause time.Duration,
) *RedactionService {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RedactionService{
		contacts:        contacts,
		conversations:   conversations,
		hooks:           hooks,
		metrics:         m,
		logger:          logger,
		batchSize:       batchSize,
		interBatchPause: interBatchPause,
		retentionWindow: DefaultRetentionWindow,
		now:             time.Now,
	}
}

// RedactContact anonymizes one contact's PII. Already-redacted
// contacts are a no-op. Safeguards run first: a legal hold defers the
// redaction entirely; recent transaction activity limits it to
// non-commerce attributes; dispute or compliance flags proceed with an
// extended audit entry. Conversation content is never touched.
func (s *RedactionService) RedactContact(ctx context.Context, contact *domain.Contact, req RedactionRequest) (*RedactionResult, error) {
	log := s.logger.With().
		Int64("account_id", contact.AccountID).
		Int64("contact_id", contact.ID).
		Str("reason", req.Reason).
		Logger()

	if contact.Redacted() {
		log.Info().Time("redacted_at", *contact.RedactedAt).Msg("contact already redacted, skipping")
		return &RedactionResult{Skipped: true}, nil
	}

	conversations, err := s.conversations.ListByContact(ctx, contact.AccountID, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations for safeguard checks: %w", err)
	}

	now := s.now()
	report := evaluateSafeguards(contact, conversations, now, s.retentionWindow)

	if report.LegalHold {
		if err := s.contacts.MarkDeferred(ctx, contact.AccountID, contact.ID, "legal_hold", now); err != nil {
			return nil, fmt.Errorf("failed to record deferred redaction: %w", err)
		}
		log.Warn().Msg("legal hold active, redaction deferred")
		return &RedactionResult{Deferred: true, DeferReason: "legal_hold"}, nil
	}

	limited := report.RecentTransactions
	newAttrs, preservedKeys := s.classifyAttributes(contact.CustomAttributes, limited)

	// Redaction metadata is merged after classification and never
	// itself redacted.
	newAttrs["redaction_performed_at"] = now.UTC().Format(time.RFC3339)
	newAttrs["redaction_reason"] = req.Reason
	if limited {
		newAttrs["redaction_type"] = "limited_redaction"
		newAttrs["preserved_attribute_keys"] = preservedKeys
	}
	if req.ShopDomain != "" {
		// Shop origin is a separate key so a limited redaction inside a
		// shop-wide run keeps its limited_redaction type.
		newAttrs["redaction_shop_domain"] = req.ShopDomain
		if !limited {
			newAttrs["redaction_type"] = "shop_redact"
		}
	}

	update := ports.ContactRedactionUpdate{
		Name:             AnonymizedName,
		Email:            AnonymizedEmail(contact.ID),
		PhoneNumber:      AnonymizedPhone(contact.ID, contact.PhoneNumber),
		CustomAttributes: newAttrs,
		RedactedAt:       now,
	}

	if err := s.contacts.ApplyRedaction(ctx, contact.AccountID, contact.ID, update); err != nil {
		s.metrics.RedactionFailures.Inc()
		return nil, fmt.Errorf("failed to apply redaction: %w", err)
	}

	if err := s.markConversations(ctx, contact, conversations, now, req.ShopDomain != ""); err != nil {
		s.metrics.RedactionFailures.Inc()
		return nil, err
	}

	if !limited {
		if err := s.verifyRedaction(ctx, contact.AccountID, contact.ID); err != nil {
			s.metrics.RedactionFailures.Inc()
			return nil, fmt.Errorf("redaction integrity verification failed: %w", err)
		}
	}

	s.auditLog(log, contact, update, report, limited, preservedKeys, len(conversations))

	redactionType := "full"
	if limited {
		redactionType = "limited"
	}
	s.metrics.Redactions.WithLabelValues(redactionType).Inc()

	return &RedactionResult{Limited: limited, PreservedKeys: preservedKeys}, nil
}

// classifyAttributes builds the post-redaction custom-attribute map.
// Unknown keys default to redacted: the fail-safe direction is privacy.
func (s *RedactionService) classifyAttributes(attrs map[string]interface{}, limited bool) (map[string]interface{}, []string) {
	out := make(map[string]interface{}, len(attrs)+4)
	var preserved []string

	for key, value := range attrs {
		switch {
		case IsSystemAttribute(key):
			out[key] = value
		case limited && !IsPIIAttribute(key) && IsPreservedAttribute(key):
			out[key] = value
			preserved = append(preserved, key)
		default:
			out[key] = RedactedValue
		}
	}
	sort.Strings(preserved)
	return out, preserved
}

// markConversations stamps every conversation with the redaction marker
// and appends exactly one private activity message. Message content is
// preserved byte for byte.
func (s *RedactionService) markConversations(ctx context.Context, contact *domain.Contact, conversations []*domain.Conversation, now time.Time, shopWide bool) error {
	note := "Contact personal data was redacted in response to a Shopify customer redaction request."
	if shopWide {
		note = "Contact personal data was redacted as part of a shop-wide data erasure request."
	}

	for _, conv := range conversations {
		attrs := map[string]interface{}{
			"contact_redacted_at":    now.UTC().Format(time.RFC3339),
			"contact_redaction_note": note,
		}
		if err := s.conversations.MergeAttributes(ctx, contact.AccountID, conv.ID, attrs); err != nil {
			return fmt.Errorf("failed to mark conversation %d: %w", conv.ID, err)
		}

		msg := domain.Message{
			Content:     note,
			MessageType: domain.MessageTypeActivity,
			Private:     true,
			CreatedAt:   now,
		}
		if err := s.conversations.AppendMessage(ctx, contact.AccountID, conv.ID, msg); err != nil {
			return fmt.Errorf("failed to append redaction notice to conversation %d: %w", conv.ID, err)
		}
	}
	return nil
}

// verifyRedaction re-reads the contact and checks every anonymized
// field against the expected shape. Publishing an unverified "redacted"
// state is worse than failing loudly, so any mismatch is fatal for this
// unit of work.
func (s *RedactionService) verifyRedaction(ctx context.Context, accountID, contactID int64) error {
	contact, err := s.contacts.GetByID(ctx, accountID, contactID)
	if err != nil {
		return fmt.Errorf("failed to re-read contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact disappeared during redaction: account=%d contact=%d", accountID, contactID)
	}

	if contact.RedactedAt == nil {
		return fmt.Errorf("redacted_at not set")
	}
	if contact.Name != AnonymizedName {
		return fmt.Errorf("name not anonymized")
	}
	if contact.Email != AnonymizedEmail(contactID) {
		return fmt.Errorf("email not anonymized")
	}
	if !anonymizedPhoneValid(contact.PhoneNumber) {
		return fmt.Errorf("phone not anonymized")
	}
	if len(contact.AdditionalEmails) != 0 {
		return fmt.Errorf("additional emails not cleared")
	}
	for key, value := range contact.CustomAttributes {
		// Same precedence as classifyAttributes: system bookkeeping
		// keys are preserved verbatim even when their names look like
		// PII keys.
		if IsSystemAttribute(key) {
			continue
		}
		if IsPIIAttribute(key) && value != RedactedValue {
			return fmt.Errorf("custom attribute %q not redacted", key)
		}
	}

	// Relationship queries must still succeed after the mutation.
	count, err := s.conversations.CountByContact(ctx, accountID, contactID)
	if err != nil {
		return fmt.Errorf("conversation count query failed: %w", err)
	}
	if count > 0 {
		conversations, err := s.conversations.ListByContact(ctx, accountID, contactID)
		if err != nil {
			return fmt.Errorf("conversation list query failed: %w", err)
		}
		for _, conv := range conversations {
			if conv.AdditionalAttributes["contact_redacted_at"] == nil {
				return fmt.Errorf("conversation %d missing redaction marker", conv.ID)
			}
		}
	}
	return nil
}

// auditLog emits the per-contact redaction audit record: before/after
// masked values, preserved-data counts and the compliance attestation.
func (s *RedactionService) auditLog(log zerolog.Logger, contact *domain.Contact, update ports.ContactRedactionUpdate, report SafeguardReport, limited bool, preservedKeys []string, conversationCount int) {
	event := log.Info().
		Str("email_before", maskValue(contact.Email)).
		Str("email_after", update.Email).
		Str("phone_before", maskValue(contact.PhoneNumber)).
		Str("phone_after", update.PhoneNumber).
		Int("preserved_attributes", len(preservedKeys)).
		Int("conversations_preserved", conversationCount).
		Bool("limited", limited).
		Time("redacted_at", update.RedactedAt)

	if report.ActiveDispute || report.ComplianceFlag {
		// Extended audit entry for flagged contacts.
		event = event.
			Bool("active_dispute", report.ActiveDispute).
			Bool("compliance_flag", report.ComplianceFlag).
			Str("attestation", "full redaction performed with dispute/compliance flags recorded")
	}
	event.Msg("contact redaction completed")
}

// maskValue keeps just enough of a value to correlate audit entries
// without retaining the PII itself.
func maskValue(v string) string {
	if len(v) <= 2 {
		return "**"
	}
	return v[:1] + "***" + v[len(v)-1:]
}

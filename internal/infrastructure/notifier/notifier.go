package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// AuditNotifier records export deliveries as audit conversations on the
// tenant and emits operator alerts through structured logs. Outbound
// email is handed off by the surrounding platform; this component's job
// is to make every compliance outcome durably visible.
type AuditNotifier struct {
	conversations ports.ConversationRepository
	logger        zerolog.Logger
}

// NewAuditNotifier creates a notifier backed by the conversation store.
func NewAuditNotifier(conversations ports.ConversationRepository, logger zerolog.Logger) *AuditNotifier {
	return &AuditNotifier{
		conversations: conversations,
		logger:        logger,
	}
}

// DeliverExport records the assembled export (or explicit no-data
// notice) as a private audit conversation addressed to the tenant's
// administrator. Found and not-found outcomes get distinct wording; the
// operator owes the requesting customer a response either way.
func (n *AuditNotifier) DeliverExport(ctx context.Context, d ports.ExportDelivery) error {
	var content string
	if d.Found {
		summary, err := json.MarshalIndent(d.Export, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render export: %w", err)
		}
		content = fmt.Sprintf(
			"Shopify customer data request for %s (customer id %d, email %s).\n"+
				"The requested data export is attached below. Forward it to the customer to fulfil the request.\n\n%s",
			d.ShopDomain, d.CustomerID, d.Email, summary,
		)
	} else {
		content = fmt.Sprintf(
			"Shopify customer data request for %s (customer id %d, email %s).\n"+
				"No matching contact data was found for this customer. "+
				"Reply to the customer confirming that no personal data is held.",
			d.ShopDomain, d.CustomerID, d.Email,
		)
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:        now.UnixNano(),
		AccountID: d.Tenant.ID,
		Status:    domain.ConversationStatusOpen,
		Channel:   "Channel::Api",
		Labels:    []string{"compliance", "data-request"},
		AdditionalAttributes: map[string]interface{}{
			"shopify_data_request": true,
			"shopify_shop_domain":  d.ShopDomain,
			"shopify_customer_id":  d.CustomerID,
			"data_found":           d.Found,
			"delivered_to":         d.Tenant.AdminEmail,
		},
		Messages: []domain.Message{{
			ID:          1,
			Content:     content,
			MessageType: domain.MessageTypeActivity,
			Private:     true,
			CreatedAt:   now,
		}},
		CreatedAt: now,
	}

	if err := n.conversations.Create(ctx, conv); err != nil {
		return fmt.Errorf("failed to record export delivery: %w", err)
	}

	n.logger.Info().
		Int64("account_id", d.Tenant.ID).
		Str("shop", d.ShopDomain).
		Int64("customer_id", d.CustomerID).
		Bool("data_found", d.Found).
		Str("admin_email", d.Tenant.AdminEmail).
		Msg("data export delivered to tenant administrator")
	return nil
}

// AlertManualIntervention emits the operator-facing alert for a hook
// whose subscription retries are exhausted. This is a terminal state
// requiring human action.
func (n *AuditNotifier) AlertManualIntervention(ctx context.Context, hook *domain.IntegrationHook, finalErr string, retryCount int) error {
	n.logger.Error().
		Str("hook_id", hook.ID).
		Int64("account_id", hook.AccountID).
		Str("shop", hook.ReferenceID).
		Str("final_error", finalErr).
		Int("retry_count", retryCount).
		Msg("ALERT: compliance webhook subscription permanently failed, manual intervention required")
	return nil
}

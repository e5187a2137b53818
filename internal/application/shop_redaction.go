package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
)

// ShopRedactionSummary reports the outcome of a shop-wide redaction run.
type ShopRedactionSummary struct {
	Processed int
	Redacted  int
	Deferred  int
	Failed    int
	Skipped   bool
}

// failureRateThreshold flags shop runs whose per-contact failure rate
// warrants operator attention.
const failureRateThreshold = 0.10

// RedactShop anonymizes every unredacted contact of a tenant in batches
// and then disables the integration hook. Re-running after completion
// is a no-op. Individual contact failures are counted and logged but do
// not abort the run.
func (s *RedactionService) RedactShop(ctx context.Context, tenant *domain.Tenant, hook *domain.IntegrationHook, shopDomain string) (*ShopRedactionSummary, error) {
	log := s.logger.With().
		Int64("account_id", tenant.ID).
		Str("shop_domain", shopDomain).
		Logger()

	if hook.Settings.Redacted() {
		log.Info().Msg("shop already redacted, skipping")
		return &ShopRedactionSummary{Skipped: true}, nil
	}

	summary := &ShopRedactionSummary{}
	started := s.now()
	var afterID int64

	for {
		batch, err := s.contacts.ListUnredacted(ctx, tenant.ID, afterID, s.batchSize)
		if err != nil {
			return summary, fmt.Errorf("failed to list unredacted contacts: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, contact := range batch {
			afterID = contact.ID
			if isServiceContact(contact) {
				continue
			}
			summary.Processed++

			result, err := s.RedactContact(ctx, contact, RedactionRequest{
				Reason:     "shop_redact",
				ShopDomain: shopDomain,
			})
			if err != nil {
				summary.Failed++
				log.Error().Err(err).Int64("contact_id", contact.ID).Msg("contact redaction failed during shop run")
				continue
			}
			switch {
			case result.Deferred:
				summary.Deferred++
			case !result.Skipped:
				summary.Redacted++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		if s.interBatchPause > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.interBatchPause):
			}
		}
	}

	now := s.now()
	set := map[string]interface{}{
		"redacted_at":      now.UTC().Format(time.RFC3339),
		"redaction_reason": "shop_redact",
	}
	if err := s.hooks.UpdateSettings(ctx, hook.ID, set, nil); err != nil {
		return summary, fmt.Errorf("failed to stamp hook as redacted: %w", err)
	}
	if err := s.hooks.Disable(ctx, hook.ID); err != nil {
		return summary, fmt.Errorf("failed to disable hook: %w", err)
	}

	event := log.Info().
		Int("processed", summary.Processed).
		Int("redacted", summary.Redacted).
		Int("deferred", summary.Deferred).
		Int("failed", summary.Failed).
		Dur("elapsed", now.Sub(started))
	if summary.Processed > 0 {
		rate := float64(summary.Failed) / float64(summary.Processed)
		event = event.Float64("failure_rate", rate)
		if rate > failureRateThreshold {
			log.Error().
				Int("failed", summary.Failed).
				Int("processed", summary.Processed).
				Msg("shop redaction failure rate exceeds threshold, manual review required")
		}
	}
	event.Msg("shop redaction completed")

	return summary, nil
}

// Sentinel addresses and names identify the platform's own service
// contacts. These rows exist in every account and shop-wide erasure
// must not touch them.
var serviceContactEmails = map[string]bool{
	"support@chatwoot.com":  true,
	"noreply@chatwoot.com":  true,
	"bot@chatwoot.com":      true,
	"system@shopify-app.io": true,
}

var serviceContactNames = map[string]bool{
	"system":        true,
	"support bot":   true,
	"chatwoot bot":  true,
	"shopify agent": true,
}

// isServiceContact recognizes internal sentinel contacts that shop-wide
// erasure must not touch, by fixed email/name sentinels or by explicit
// attribute flag.
func isServiceContact(contact *domain.Contact) bool {
	if serviceContactEmails[strings.ToLower(contact.Email)] {
		return true
	}
	if serviceContactNames[strings.ToLower(contact.Name)] {
		return true
	}
	if truthy(contact.CustomAttributes["service_contact"]) {
		return true
	}
	return contact.Attribute("contact_type") == "service"
}

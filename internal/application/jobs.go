package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// Queue job types for the compliance pipeline.
const (
	JobDataRequest    = "compliance.data_request"
	JobCustomerRedact = "compliance.customer_redact"
	JobShopRedact     = "compliance.shop_redact"
)

// ComplianceJobs decodes queued webhook payloads and dispatches them
// to the pipeline services. Tenant resolution misses are soft: the job
// completes with a log entry so the queue never retries a shop we do
// not know.
type ComplianceJobs struct {
	resolver     *AccountResolver
	redaction    *RedactionService
	exports      *ExportService
	subscription *SubscriptionService
	hooks        ports.IntegrationHookRepository
	logger       zerolog.Logger
}

// NewComplianceJobs creates the job dispatch layer.
func NewComplianceJobs(
	resolver *AccountResolver,
	redaction *RedactionService,
	exports *ExportService,
	subscription *SubscriptionService,
	hooks ports.IntegrationHookRepository,
	logger zerolog.Logger,
) *ComplianceJobs {
	return &ComplianceJobs{
		resolver:     resolver,
		redaction:    redaction,
		exports:      exports,
		subscription: subscription,
		hooks:        hooks,
		logger:       logger,
	}
}

// HandleDataRequest assembles and delivers a customer data export.
func (j *ComplianceJobs) HandleDataRequest(ctx context.Context, payload []byte) error {
	var req domain.DataRequestPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("malformed data request payload: %w", err)
	}

	tenant := j.resolver.Resolve(ctx, req.ShopDomain)
	if tenant == nil {
		j.logger.Info().Str("shop_domain", req.ShopDomain).Msg("data request for unknown shop, skipping")
		return nil
	}

	var customerID int64
	var email string
	if req.Customer != nil {
		customerID = req.Customer.ID
		email = req.Customer.Email
	}
	return j.exports.Fulfill(ctx, tenant, req.ShopDomain, customerID, email)
}

// HandleCustomerRedact redacts a single customer's PII.
func (j *ComplianceJobs) HandleCustomerRedact(ctx context.Context, payload []byte) error {
	var req domain.CustomerRedactPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("malformed customer redact payload: %w", err)
	}

	tenant := j.resolver.Resolve(ctx, req.ShopDomain)
	if tenant == nil {
		j.logger.Info().Str("shop_domain", req.ShopDomain).Msg("customer redact for unknown shop, skipping")
		return nil
	}

	var customerID int64
	var email string
	if req.Customer != nil {
		customerID = req.Customer.ID
		email = req.Customer.Email
	}
	contact, err := j.exports.FindContact(ctx, tenant.ID, customerID, email)
	if err != nil {
		return err
	}
	if contact == nil {
		j.logger.Info().
			Int64("account_id", tenant.ID).
			Int64("customer_id", customerID).
			Msg("customer redact matched no contact, nothing to do")
		return nil
	}

	_, err = j.redaction.RedactContact(ctx, contact, RedactionRequest{Reason: "customer_redact"})
	return err
}

// HandleShopRedact redacts every contact of a shop and disables its
// hook.
func (j *ComplianceJobs) HandleShopRedact(ctx context.Context, payload []byte) error {
	var req domain.ShopRedactPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("malformed shop redact payload: %w", err)
	}

	tenant, hook := j.resolver.ResolveWithHook(ctx, req.ShopDomain)
	if tenant == nil || hook == nil {
		j.logger.Info().Str("shop_domain", req.ShopDomain).Msg("shop redact for unknown shop, skipping")
		return nil
	}

	_, err := j.redaction.RedactShop(ctx, tenant, hook, req.ShopDomain)
	return err
}

// HandleSubscriptionRetry runs one scheduled subscription retry. A
// further scheduled retry counts as handled; the queue must not layer
// its own retries on top of the coordinator's schedule.
func (j *ComplianceJobs) HandleSubscriptionRetry(ctx context.Context, payload []byte) error {
	var attempt SubscriptionAttempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return fmt.Errorf("malformed subscription retry payload: %w", err)
	}

	hook, err := j.hooks.GetByID(ctx, attempt.HookID)
	if err != nil {
		return fmt.Errorf("failed to load hook %s: %w", attempt.HookID, err)
	}
	if hook == nil || !hook.Enabled() {
		j.logger.Info().Str("hook_id", attempt.HookID).Msg("hook gone or disabled, dropping subscription retry")
		return nil
	}

	err = j.subscription.EnsureSubscribed(ctx, hook, attempt)
	if errors.Is(err, ErrRetryScheduled) {
		return nil
	}
	return err
}

package domain

import "time"

// HookStatus represents whether an integration hook is usable.
type HookStatus string

const (
	HookStatusEnabled  HookStatus = "enabled"
	HookStatusDisabled HookStatus = "disabled"
)

// AppShopify is the app identifier for the Shopify integration.
const AppShopify = "shopify"

// IntegrationHook is a tenant's stored connection to an external
// platform: the shop it points at, the access token for its API, and a
// settings bag that accumulates compliance bookkeeping over the hook's
// lifetime.
type IntegrationHook struct {
	ID          string       `json:"id" bson:"_id,omitempty"`
	AccountID   int64        `json:"account_id" bson:"account_id"`
	AppID       string       `json:"app_id" bson:"app_id"`
	ReferenceID string       `json:"reference_id" bson:"reference_id"` // shop domain
	AccessToken string       `json:"-" bson:"access_token"`
	Status      HookStatus   `json:"status" bson:"status"`
	Settings    HookSettings `json:"settings" bson:"settings"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
}

// Enabled reports whether the hook may be used for API calls.
func (h *IntegrationHook) Enabled() bool {
	return h != nil && h.Status == HookStatusEnabled
}

// HookSettings is the typed view of the hook's settings map. Known
// compliance-tracking keys get named fields; anything else lands in
// Extra so unknown keys written by other parts of the platform survive
// round-trips. Key names are part of the stored contract and must not
// change.
type HookSettings struct {
	ComplianceWebhooksPending       *bool      `json:"compliance_webhooks_pending,omitempty" bson:"compliance_webhooks_pending,omitempty"`
	ComplianceWebhooksSubscribed    *bool      `json:"compliance_webhooks_subscribed,omitempty" bson:"compliance_webhooks_subscribed,omitempty"`
	ComplianceWebhooksSubscribedAt  *time.Time `json:"compliance_webhooks_subscribed_at,omitempty" bson:"compliance_webhooks_subscribed_at,omitempty"`
	SubscribedTopicsCount           *int       `json:"subscribed_topics_count,omitempty" bson:"subscribed_topics_count,omitempty"`
	SubscriptionFailureReason       *string    `json:"webhook_subscription_failure_reason,omitempty" bson:"webhook_subscription_failure_reason,omitempty"`
	SubscriptionRetryQueuedAt       *time.Time `json:"webhook_subscription_retry_queued_at,omitempty" bson:"webhook_subscription_retry_queued_at,omitempty"`
	SubscriptionRetryCount          *int       `json:"webhook_subscription_retry_count,omitempty" bson:"webhook_subscription_retry_count,omitempty"`
	SubscriptionPermanentlyFailedAt *time.Time `json:"webhook_subscription_permanently_failed_at,omitempty" bson:"webhook_subscription_permanently_failed_at,omitempty"`
	SubscriptionFinalRetryCount     *int       `json:"webhook_subscription_final_retry_count,omitempty" bson:"webhook_subscription_final_retry_count,omitempty"`
	SubscriptionFinalError          *string    `json:"webhook_subscription_final_error,omitempty" bson:"webhook_subscription_final_error,omitempty"`
	RequiresManualIntervention      *bool      `json:"requires_manual_intervention,omitempty" bson:"requires_manual_intervention,omitempty"`
	RedactedAt                      *time.Time `json:"redacted_at,omitempty" bson:"redacted_at,omitempty"`
	RedactionReason                 *string    `json:"redaction_reason,omitempty" bson:"redaction_reason,omitempty"`

	Extra map[string]interface{} `json:",omitempty" bson:",inline"`
}

// Subscribed reports whether all mandatory compliance topics are
// currently subscribed for this hook.
func (s HookSettings) Subscribed() bool {
	return s.ComplianceWebhooksSubscribed != nil && *s.ComplianceWebhooksSubscribed
}

// Pending reports whether a subscription attempt is still outstanding.
func (s HookSettings) Pending() bool {
	return s.ComplianceWebhooksPending != nil && *s.ComplianceWebhooksPending
}

// NeedsManualIntervention reports whether subscription retries were
// exhausted and an operator must act.
func (s HookSettings) NeedsManualIntervention() bool {
	return s.RequiresManualIntervention != nil && *s.RequiresManualIntervention
}

// Redacted reports whether the hook's shop has been through shop-wide
// redaction.
func (s HookSettings) Redacted() bool {
	return s.RedactedAt != nil
}

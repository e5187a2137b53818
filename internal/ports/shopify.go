package ports

import (
	"context"
	"fmt"
	"strings"

	shopify "github.com/bold-commerce/go-shopify/v4"
)

// ShopifyWebhookAPI is the slice of the Shopify Admin API the
// compliance pipeline needs: creating and listing webhook
// subscriptions on a shop.
type ShopifyWebhookAPI interface {
	CreateWebhook(ctx context.Context, shopDomain, accessToken, topic, address string) (*shopify.Webhook, error)
	ListWebhooks(ctx context.Context, shopDomain, accessToken string) ([]shopify.Webhook, error)
}

// TopicResult is the per-topic outcome of a subscription pass.
type TopicResult struct {
	Topic      string
	Subscribed bool
	Attempts   int
	Error      string
}

// SubscriptionOutcome aggregates per-topic results. Aggregate success
// requires every mandatory topic subscribed; per-topic results are
// preserved either way.
type SubscriptionOutcome struct {
	Results []TopicResult
}

// AllSubscribed reports aggregate success.
func (o *SubscriptionOutcome) AllSubscribed() bool {
	if len(o.Results) == 0 {
		return false
	}
	for _, r := range o.Results {
		if !r.Subscribed {
			return false
		}
	}
	return true
}

// SubscribedCount returns the number of topics subscribed.
func (o *SubscriptionOutcome) SubscribedCount() int {
	n := 0
	for _, r := range o.Results {
		if r.Subscribed {
			n++
		}
	}
	return n
}

// FailureSummary returns a compact description of failed topics, empty
// on aggregate success.
func (o *SubscriptionOutcome) FailureSummary() string {
	var parts []string
	for _, r := range o.Results {
		if !r.Subscribed {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Topic, r.Error))
		}
	}
	return strings.Join(parts, "; ")
}

// MandatoryTopicSubscriber subscribes a shop to all mandatory
// compliance topics, retrying transient per-topic failures internally.
type MandatoryTopicSubscriber interface {
	SubscribeMandatoryTopics(ctx context.Context, shopDomain, accessToken string) *SubscriptionOutcome
}

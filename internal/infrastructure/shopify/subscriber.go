package shopify

import (
	"context"
	"strings"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// TopicSubscriber subscribes a shop to the mandatory compliance topics,
// retrying each topic independently with exponential backoff.
type TopicSubscriber struct {
	api          ports.ShopifyWebhookAPI
	retry        RetryConfig
	callbackBase string
	logger       zerolog.Logger
}

// NewTopicSubscriber creates a subscriber. callbackBase is the public
// base URL webhooks are delivered to, e.g. "https://app.example.com".
func NewTopicSubscriber(api ports.ShopifyWebhookAPI, retry RetryConfig, callbackBase string, logger zerolog.Logger) *TopicSubscriber {
	return &TopicSubscriber{
		api:          api,
		retry:        retry,
		callbackBase: strings.TrimSuffix(callbackBase, "/"),
		logger:       logger,
	}
}

// CallbackAddress returns the delivery URL for a compliance topic.
func (s *TopicSubscriber) CallbackAddress(topic string) string {
	return s.callbackBase + "/webhooks/" + strings.ReplaceAll(topic, "/", "_")
}

// SubscribeMandatoryTopics attempts to subscribe every mandatory topic
// for the shop. Topics already subscribed at the current callback URL
// are skipped. Only transient errors consume retry attempts; anything
// else fails that topic immediately.
func (s *TopicSubscriber) SubscribeMandatoryTopics(ctx context.Context, shopDomain, accessToken string) *ports.SubscriptionOutcome {
	existing := s.existingAddresses(ctx, shopDomain, accessToken)

	outcome := &ports.SubscriptionOutcome{}
	for _, topic := range domain.MandatoryTopics() {
		address := s.CallbackAddress(topic)
		if existing[topic+"@"+address] {
			s.logger.Debug().
				Str("shop", shopDomain).
				Str("topic", topic).
				Msg("topic already subscribed, skipping")
			outcome.Results = append(outcome.Results, ports.TopicResult{Topic: topic, Subscribed: true})
			continue
		}
		outcome.Results = append(outcome.Results, s.subscribeTopic(ctx, shopDomain, accessToken, topic, address))
	}
	return outcome
}

func (s *TopicSubscriber) subscribeTopic(ctx context.Context, shopDomain, accessToken, topic, address string) ports.TopicResult {
	result := ports.TopicResult{Topic: topic}

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		result.Attempts = attempt

		_, err := s.api.CreateWebhook(ctx, shopDomain, accessToken, topic, address)
		if err == nil {
			s.logger.Info().
				Str("shop", shopDomain).
				Str("topic", topic).
				Int("attempt", attempt).
				Msg("subscribed compliance topic")
			result.Subscribed = true
			return result
		}

		result.Error = err.Error()
		if !IsTransient(err) {
			s.logger.Error().
				Err(err).
				Str("shop", shopDomain).
				Str("topic", topic).
				Msg("non-transient subscription error, not retrying")
			return result
		}

		if attempt < s.retry.MaxAttempts {
			delay := s.retry.Delay(attempt)
			s.logger.Warn().
				Err(err).
				Str("shop", shopDomain).
				Str("topic", topic).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("transient subscription error, backing off")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result
			}
		}
	}

	s.logger.Error().
		Str("shop", shopDomain).
		Str("topic", topic).
		Int("attempts", result.Attempts).
		Str("last_error", result.Error).
		Msg("exhausted subscription attempts for topic")
	return result
}

// existingAddresses returns a topic@address set of current
// subscriptions. A listing failure is treated as no existing
// subscriptions; creation is idempotent on Shopify's side.
func (s *TopicSubscriber) existingAddresses(ctx context.Context, shopDomain, accessToken string) map[string]bool {
	set := map[string]bool{}
	webhooks, err := s.api.ListWebhooks(ctx, shopDomain, accessToken)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("failed to list existing webhooks")
		return set
	}
	for _, w := range webhooks {
		set[w.Topic+"@"+w.Address] = true
	}
	return set
}

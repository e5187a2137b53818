package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/eleva-labs/chatwoot/internal/domain"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultSubscriptionMaxRetries bounds scheduled re-invocations after
// the initial subscription attempt.
const DefaultSubscriptionMaxRetries = 3

// JobSubscriptionRetry is the queue job type for scheduled
// subscription re-invocations.
const JobSubscriptionRetry = "compliance.subscription_retry"

// ErrRetryScheduled reports that a subscription pass failed but a
// delayed re-invocation was queued. Callers running inside the job
// system treat it as handled; the install path can still surface it.
var ErrRetryScheduled = errors.New("subscription retry scheduled")

// SubscriptionAttempt is the retry state carried between scheduled
// re-invocations. It travels as explicit job arguments because the
// retry may run on a different worker than the one that scheduled it.
type SubscriptionAttempt struct {
	HookID     string `json:"hook_id"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
}

// SubscriptionHealthReport aggregates subscription state across every
// hook of the app.
type SubscriptionHealthReport struct {
	Total              int     `json:"total"`
	Subscribed         int     `json:"subscribed"`
	Pending            int     `json:"pending"`
	ManualIntervention int     `json:"manual_intervention"`
	Redacted           int     `json:"redacted"`
	SuccessPercentage  float64 `json:"success_percentage"`
}

// SubscriptionService keeps the mandatory compliance webhook topics
// subscribed for every installed shop, retrying failed subscription
// passes with growing delays and escalating to a terminal
// manual-intervention state once retries are exhausted.
type SubscriptionService struct {
	hooks      ports.IntegrationHookRepository
	subscriber ports.MandatoryTopicSubscriber
	queue      ports.JobQueue
	notifier   ports.ComplianceNotifier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	maxRetries int

	// FailInstallOnError, when set, makes BeginOnboarding surface the
	// first subscription failure to the installer instead of retrying
	// in the background.
	FailInstallOnError bool

	now func() time.Time
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService(
	hooks ports.IntegrationHookRepository,
	subscriber ports.MandatoryTopicSubscriber,
	queue ports.JobQueue,
	notifier ports.ComplianceNotifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
	maxRetries int,
) *SubscriptionService {
	if maxRetries <= 0 {
		maxRetries = DefaultSubscriptionMaxRetries
	}
	return &SubscriptionService{
		hooks:      hooks,
		subscriber: subscriber,
		queue:      queue,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// RetryDelay returns the wait before retry n (1-based): 5, 15, 45
// minutes.
func RetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(5*math.Pow(3, float64(retryCount-1))) * time.Minute
}

// BeginOnboarding runs the first subscription pass for a freshly
// installed hook. The default path runs it inline and falls through to
// the retry schedule on failure.
func (s *SubscriptionService) BeginOnboarding(ctx context.Context, hook *domain.IntegrationHook) error {
	attempt := SubscriptionAttempt{
		HookID:     hook.ID,
		RetryCount: 0,
		MaxRetries: s.maxRetries,
	}
	err := s.EnsureSubscribed(ctx, hook, attempt)
	if err != nil && s.FailInstallOnError {
		return fmt.Errorf("mandatory webhook subscription failed during install: %w", err)
	}
	return nil
}

// EnsureSubscribed runs one subscription pass for the hook and records
// the outcome in the hook's settings. On aggregate failure it either
// schedules the next retry or, once retries are exhausted, marks the
// hook as requiring manual intervention and alerts an operator.
func (s *SubscriptionService) EnsureSubscribed(ctx context.Context, hook *domain.IntegrationHook, attempt SubscriptionAttempt) error {
	log := s.logger.With().
		Str("hook_id", hook.ID).
		Str("shop_domain", hook.ReferenceID).
		Int("retry_count", attempt.RetryCount).
		Logger()

	if hook.Settings.Subscribed() {
		log.Debug().Msg("mandatory topics already subscribed")
		return nil
	}

	outcome := s.subscriber.SubscribeMandatoryTopics(ctx, hook.ReferenceID, hook.AccessToken)

	if outcome.AllSubscribed() {
		return s.recordSuccess(ctx, hook, outcome, log)
	}

	failure := outcome.FailureSummary()
	log.Warn().
		Str("failure", failure).
		Int("subscribed", outcome.SubscribedCount()).
		Int("required", len(domain.MandatoryTopics())).
		Msg("mandatory topic subscription incomplete")

	nextRetry := attempt.RetryCount + 1
	if nextRetry > attempt.MaxRetries {
		return s.recordPermanentFailure(ctx, hook, attempt, failure, log)
	}
	return s.scheduleRetry(ctx, hook, attempt, nextRetry, failure, log)
}

func (s *SubscriptionService) recordSuccess(ctx context.Context, hook *domain.IntegrationHook, outcome *ports.SubscriptionOutcome, log zerolog.Logger) error {
	now := s.now().UTC()
	set := map[string]interface{}{
		"compliance_webhooks_pending":       false,
		"compliance_webhooks_subscribed":    true,
		"compliance_webhooks_subscribed_at": now,
		"subscribed_topics_count":           outcome.SubscribedCount(),
	}
	// Prior failure markers are superseded by a successful pass.
	unset := []string{
		"webhook_subscription_failure_reason",
		"webhook_subscription_retry_queued_at",
		"webhook_subscription_retry_count",
		"webhook_subscription_permanently_failed_at",
		"webhook_subscription_final_retry_count",
		"webhook_subscription_final_error",
		"requires_manual_intervention",
	}
	if err := s.hooks.UpdateSettings(ctx, hook.ID, set, unset); err != nil {
		return fmt.Errorf("failed to record subscription success: %w", err)
	}
	log.Info().Int("topics", outcome.SubscribedCount()).Msg("mandatory topics subscribed")
	return nil
}

func (s *SubscriptionService) scheduleRetry(ctx context.Context, hook *domain.IntegrationHook, attempt SubscriptionAttempt, nextRetry int, failure string, log zerolog.Logger) error {
	delay := RetryDelay(nextRetry)
	set := map[string]interface{}{
		"compliance_webhooks_pending":          true,
		"webhook_subscription_failure_reason":  failure,
		"webhook_subscription_retry_queued_at": s.now().UTC(),
		"webhook_subscription_retry_count":     nextRetry,
	}
	if err := s.hooks.UpdateSettings(ctx, hook.ID, set, nil); err != nil {
		return fmt.Errorf("failed to record retry state: %w", err)
	}

	next := SubscriptionAttempt{
		HookID:     hook.ID,
		RetryCount: nextRetry,
		MaxRetries: attempt.MaxRetries,
		LastError:  failure,
	}
	if err := s.queue.EnqueueIn(ctx, JobSubscriptionRetry, next, delay); err != nil {
		return fmt.Errorf("failed to schedule subscription retry: %w", err)
	}

	s.metrics.SubscriptionRetries.Inc()
	log.Info().Dur("delay", delay).Int("next_retry", nextRetry).Msg("subscription retry scheduled")
	return fmt.Errorf("%w: retry %d: %s", ErrRetryScheduled, nextRetry, failure)
}

func (s *SubscriptionService) recordPermanentFailure(ctx context.Context, hook *domain.IntegrationHook, attempt SubscriptionAttempt, failure string, log zerolog.Logger) error {
	set := map[string]interface{}{
		"compliance_webhooks_pending":                false,
		"compliance_webhooks_subscribed":             false,
		"requires_manual_intervention":               true,
		"webhook_subscription_permanently_failed_at": s.now().UTC(),
		"webhook_subscription_final_retry_count":     attempt.RetryCount,
		"webhook_subscription_final_error":           failure,
	}
	if err := s.hooks.UpdateSettings(ctx, hook.ID, set, nil); err != nil {
		return fmt.Errorf("failed to record permanent failure: %w", err)
	}

	s.metrics.PermanentFailures.Inc()
	log.Error().
		Str("final_error", failure).
		Int("final_retry_count", attempt.RetryCount).
		Msg("subscription retries exhausted, manual intervention required")

	if err := s.notifier.AlertManualIntervention(ctx, hook, failure, attempt.RetryCount); err != nil {
		log.Error().Err(err).Msg("failed to emit manual intervention alert")
	}

	// Terminal state: no further retries are scheduled. The recorded
	// state is the success condition for this attempt.
	return nil
}

// HealthReport aggregates subscription state across all hooks for the
// app.
func (s *SubscriptionService) HealthReport(ctx context.Context) (*SubscriptionHealthReport, error) {
	hooks, err := s.hooks.ListByApp(ctx, domain.AppShopify)
	if err != nil {
		return nil, fmt.Errorf("failed to list hooks: %w", err)
	}

	report := &SubscriptionHealthReport{Total: len(hooks)}
	for _, hook := range hooks {
		switch {
		case hook.Settings.Redacted():
			report.Redacted++
		case hook.Settings.Subscribed():
			report.Subscribed++
		case hook.Settings.Pending():
			report.Pending++
		case hook.Settings.NeedsManualIntervention():
			report.ManualIntervention++
		}
	}
	if report.Total > 0 {
		pct := float64(report.Subscribed) / float64(report.Total) * 100
		report.SuccessPercentage = math.Round(pct*100) / 100
	}
	return report, nil
}

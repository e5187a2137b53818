package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	readyKey   = "compliance:jobs:ready"
	delayedKey = "compliance:jobs:delayed"
)

// Policy is the declarative execution policy for one job type: how many
// times a job may run, how long a single run may take, how retries back
// off, and which errors are worth retrying at all.
type Policy struct {
	MaxAttempts int
	Timeout     time.Duration
	Backoff     func(attempt int) time.Duration
	// Retryable filters errors; nil means every error is retryable.
	Retryable func(error) bool
}

// Handler executes one job. The payload is the JSON the enqueuer
// provided.
type Handler func(ctx context.Context, payload []byte) error

type job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// RedisQueue is a Redis-backed at-least-once job queue: a list holds
// ready jobs, a sorted set holds delayed jobs scored by their due time.
// Jobs carry their full retry state in the payload, so a retry may run
// on a different worker than the one that scheduled it.
type RedisQueue struct {
	client   *redis.Client
	logger   zerolog.Logger
	mu       sync.RWMutex
	handlers map[string]Handler
	policies map[string]Policy
	stop     chan struct{}
	done     chan struct{}
}

// NewRedisQueue creates a queue on the given Redis client.
func NewRedisQueue(client *redis.Client, logger zerolog.Logger) *RedisQueue {
	return &RedisQueue{
		client:   client,
		logger:   logger,
		handlers: map[string]Handler{},
		policies: map[string]Policy{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register binds a handler and its execution policy to a job type.
func (q *RedisQueue) Register(jobType string, handler Handler, policy Policy) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
	q.policies[jobType] = policy
}

// Enqueue queues a job for immediate execution.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	data, err := q.marshal(jobType, payload, 0)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, readyKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// EnqueueIn queues a job for execution after delay.
func (q *RedisQueue) EnqueueIn(ctx context.Context, jobType string, payload interface{}, delay time.Duration) error {
	data, err := q.marshal(jobType, payload, 0)
	if err != nil {
		return err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: due, Member: data}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue delayed job: %w", err)
	}
	return nil
}

func (q *RedisQueue) marshal(jobType string, payload interface{}, attempt int) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	data, err := json.Marshal(job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Payload:    raw,
		Attempt:    attempt,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// Start runs the worker loop until Stop is called.
func (q *RedisQueue) Start() {
	go q.run()
}

// Stop shuts the worker down and waits for the in-flight job.
func (q *RedisQueue) Stop() {
	close(q.stop)
	<-q.done
}

func (q *RedisQueue) run() {
	defer close(q.done)
	ctx := context.Background()

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		q.promoteDue(ctx)

		result, err := q.client.BRPop(ctx, time.Second, readyKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			q.logger.Error().Err(err).Msg("queue poll failed")
			time.Sleep(time.Second)
			continue
		}
		// BRPop returns [key, value]
		if len(result) == 2 {
			q.process(ctx, []byte(result[1]))
		}
	}
}

// promoteDue moves delayed jobs whose due time has passed onto the
// ready list.
func (q *RedisQueue) promoteDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		q.logger.Error().Err(err).Msg("failed to read delayed jobs")
		return
	}
	for _, m := range members {
		removed, err := q.client.ZRem(ctx, delayedKey, m).Result()
		if err != nil || removed == 0 {
			// another worker claimed it
			continue
		}
		if err := q.client.LPush(ctx, readyKey, m).Err(); err != nil {
			q.logger.Error().Err(err).Msg("failed to promote delayed job")
		}
	}
}

func (q *RedisQueue) process(ctx context.Context, data []byte) {
	var j job
	if err := json.Unmarshal(data, &j); err != nil {
		// Non-retryable deserialization error: permanent discard.
		q.logger.Error().Err(err).Msg("discarding malformed job")
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[j.Type]
	policy := q.policies[j.Type]
	q.mu.RUnlock()

	if !ok {
		q.logger.Error().Str("job_type", j.Type).Str("job_id", j.ID).Msg("discarding job with no registered handler")
		return
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Timeout <= 0 {
		policy.Timeout = time.Minute
	}

	j.Attempt++
	runCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	err := handler(runCtx, j.Payload)
	cancel()

	if err == nil {
		q.logger.Debug().
			Str("job_type", j.Type).
			Str("job_id", j.ID).
			Int("attempt", j.Attempt).
			Msg("job completed")
		return
	}

	retryable := policy.Retryable == nil || policy.Retryable(err)
	if j.Attempt >= policy.MaxAttempts || !retryable {
		q.logger.Error().
			Err(err).
			Str("job_type", j.Type).
			Str("job_id", j.ID).
			Int("attempt", j.Attempt).
			Bool("retryable", retryable).
			Msg("job failed permanently")
		return
	}

	delay := 30 * time.Second
	if policy.Backoff != nil {
		delay = policy.Backoff(j.Attempt)
	}
	retryData, merr := json.Marshal(j)
	if merr != nil {
		q.logger.Error().Err(merr).Str("job_id", j.ID).Msg("failed to re-marshal job for retry")
		return
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if zerr := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: due, Member: retryData}).Err(); zerr != nil {
		q.logger.Error().Err(zerr).Str("job_id", j.ID).Msg("failed to schedule job retry")
		return
	}
	q.logger.Warn().
		Err(err).
		Str("job_type", j.Type).
		Str("job_id", j.ID).
		Int("attempt", j.Attempt).
		Dur("retry_in", delay).
		Msg("job failed, retry scheduled")
}

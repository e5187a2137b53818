package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eleva-labs/chatwoot/internal/application"
	"github.com/eleva-labs/chatwoot/internal/config"
	apiinfra "github.com/eleva-labs/chatwoot/internal/infrastructure/api"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/metrics"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/notifier"
	queueinfra "github.com/eleva-labs/chatwoot/internal/infrastructure/queue"
	"github.com/eleva-labs/chatwoot/internal/infrastructure/repository"
	shopifyinfra "github.com/eleva-labs/chatwoot/internal/infrastructure/shopify"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("no .env file found, reading environment directly")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Shopify.WebhookSecret == "" {
		logger.Fatal().Msg("SHOPIFY_WEBHOOK_SECRET is required")
	}

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.Mongo.Database)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Repositories
	tenantRepo := repository.NewMongoTenantRepository(db)
	hookRepo := repository.NewMongoHookRepository(db)
	contactRepo := repository.NewMongoContactRepository(db)
	conversationRepo := repository.NewMongoConversationRepository(db)
	eventRepo := repository.NewMongoWebhookEventRepository(db)

	// Shopify Admin API with per-topic retry
	shopifyAPI := shopifyinfra.NewClient(cfg.Shopify.APIKey, cfg.Shopify.APISecret, logger)
	callbackBase := fmt.Sprintf("%s://%s", cfg.Shopify.WebhookProtocol, cfg.Shopify.WebhookHost)
	subscriber := shopifyinfra.NewTopicSubscriber(shopifyAPI, shopifyinfra.DefaultRetryConfig(), callbackBase, logger)

	// Queue
	jobQueue := queueinfra.NewRedisQueue(redisClient, logger)

	// Application services
	auditNotifier := notifier.NewAuditNotifier(conversationRepo, logger)
	resolver := application.NewAccountResolver(hookRepo, tenantRepo, logger)
	redaction := application.NewRedactionService(
		contactRepo, conversationRepo, hookRepo, m, logger,
		cfg.Redaction.BatchSize, cfg.Redaction.InterBatchPause,
	)
	exports := application.NewExportService(contactRepo, conversationRepo, auditNotifier, m, logger)
	subscription := application.NewSubscriptionService(
		hookRepo, subscriber, jobQueue, auditNotifier, m, logger,
		cfg.Shopify.SubscriptionMaxRetries,
	)
	subscription.FailInstallOnError = cfg.Shopify.FailInstallOnSubscriptionError

	jobs := application.NewComplianceJobs(resolver, redaction, exports, subscription, hookRepo, logger)

	// Job registration. Customer-scoped jobs get the moderate timeout,
	// shop-wide redaction the long one. Subscription retries manage
	// their own schedule, so the queue is told not to retry them.
	customerPolicy := queueinfra.Policy{
		MaxAttempts: 3,
		Timeout:     cfg.Jobs.CustomerJobTimeout,
		Backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * time.Minute },
	}
	shopPolicy := queueinfra.Policy{
		MaxAttempts: 3,
		Timeout:     cfg.Jobs.ShopJobTimeout,
		Backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * 5 * time.Minute },
	}
	retryPolicy := queueinfra.Policy{
		MaxAttempts: 1,
		Timeout:     cfg.Jobs.CustomerJobTimeout,
	}
	jobQueue.Register(application.JobDataRequest, jobs.HandleDataRequest, customerPolicy)
	jobQueue.Register(application.JobCustomerRedact, jobs.HandleCustomerRedact, customerPolicy)
	jobQueue.Register(application.JobShopRedact, jobs.HandleShopRedact, shopPolicy)
	jobQueue.Register(application.JobSubscriptionRetry, jobs.HandleSubscriptionRetry, retryPolicy)
	jobQueue.Start()
	defer jobQueue.Stop()

	// HTTP surface
	verifier := shopifyinfra.NewVerifier(cfg.Shopify.WebhookSecret, logger)
	compliance := apiinfra.NewComplianceHandler(verifier, jobQueue, eventRepo, m, logger, cfg.Shopify.MaxPayloadBytes)
	router := apiinfra.NewRouter(apiinfra.RouterDeps{
		Compliance:   compliance,
		Subscription: subscription,
		Hooks:        hookRepo,
		Registry:     registry,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("starting compliance webhook server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

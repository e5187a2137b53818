package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Redaction RedactionConfig `mapstructure:"redaction"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ShopifyConfig struct {
	// APIKey and APISecret identify the app against the Admin API.
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`

	// WebhookSecret is the shared HMAC secret Shopify signs webhook
	// bodies with.
	WebhookSecret string `mapstructure:"webhook_secret"`

	// WebhookHost and WebhookProtocol build the callback URLs handed to
	// Shopify when subscribing the mandatory topics.
	WebhookHost     string `mapstructure:"webhook_host"`
	WebhookProtocol string `mapstructure:"webhook_protocol"`

	// MaxPayloadBytes caps inbound webhook body size.
	MaxPayloadBytes int64 `mapstructure:"max_payload_bytes"`

	// SubscriptionMaxRetries bounds coordinator-level re-invocations of
	// the mandatory-topic subscription.
	SubscriptionMaxRetries int `mapstructure:"subscription_max_retries"`

	// FailInstallOnSubscriptionError makes tenant installation fail
	// when the initial subscription attempt errors.
	FailInstallOnSubscriptionError bool `mapstructure:"fail_install_on_subscription_error"`
}

type RedactionConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	InterBatchPause time.Duration `mapstructure:"inter_batch_pause"`
}

type JobsConfig struct {
	CustomerJobTimeout time.Duration `mapstructure:"customer_job_timeout"`
	ShopJobTimeout     time.Duration `mapstructure:"shop_job_timeout"`
}

// Load reads configuration from the environment with sane defaults.
// Keys map to env vars with dots replaced by underscores, e.g.
// shopify.webhook_secret -> SHOPIFY_WEBHOOK_SECRET.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", "8080")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chatwoot")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("shopify.webhook_protocol", "https")
	v.SetDefault("shopify.max_payload_bytes", 1<<20)
	v.SetDefault("shopify.subscription_max_retries", 3)
	v.SetDefault("shopify.fail_install_on_subscription_error", false)
	v.SetDefault("redaction.batch_size", 50)
	v.SetDefault("redaction.inter_batch_pause", 250*time.Millisecond)
	v.SetDefault("jobs.customer_job_timeout", 5*time.Minute)
	v.SetDefault("jobs.shop_job_timeout", 10*time.Minute)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

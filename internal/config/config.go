package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Credits reset policies accepted in CREDITS_RESET_POLICY.
const (
	CreditsResetPeriod = "period" // reset creditsUsed on new subscription, plan change or period advance
	CreditsResetAlways = "always" // reset creditsUsed on every plan apply
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	StripeSecretKey                  string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret              string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeProPriceID                 string `mapstructure:"STRIPE_PRO_PRICE_ID"`
	StripeTeamsPriceID               string `mapstructure:"STRIPE_TEAMS_PRICE_ID"`
	StripeEnterprisePriceID          string `mapstructure:"STRIPE_ENTERPRISE_PRICE_ID"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`
	PlanCatalogFile                  string `mapstructure:"PLAN_CATALOG_FILE"`
	CreditsResetPolicy               string `mapstructure:"CREDITS_RESET_POLICY"`

	// Redis is optional; an empty address keeps processed webhook events in memory.
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	WebhookEventTTL time.Duration `mapstructure:"WEBHOOK_EVENT_TTL"`

	// RabbitMQ is optional; an empty URL disables billing notifications.
	AMQPURL            string `mapstructure:"AMQP_URL"`
	BillingEventsQueue string `mapstructure:"BILLING_EVENTS_QUEUE"`
}

var appConfig *Config

var configKeys = []string{
	"PORT",
	"GIN_MODE",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"STRIPE_PRO_PRICE_ID",
	"STRIPE_TEAMS_PRICE_ID",
	"STRIPE_ENTERPRISE_PRICE_ID",
	"CLIENT_URL",
	"PLAN_CATALOG_FILE",
	"CREDITS_RESET_POLICY",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"WEBHOOK_EVENT_TTL",
	"AMQP_URL",
	"BILLING_EVENTS_QUEUE",
}

// LoadConfig loads configuration from environment variables using Viper.
// A .env file in the working directory, if present, is loaded first; values
// already set in the environment take precedence over it.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, errors.New("failed to load .env file: " + err.Error())
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CREDITS_RESET_POLICY", CreditsResetPeriod)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("WEBHOOK_EVENT_TTL", 72*time.Hour)
	v.SetDefault("BILLING_EVENTS_QUEUE", "billing-events")

	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.ClientURL == "" {
		return errors.New("CLIENT_URL is required")
	}
	switch c.CreditsResetPolicy {
	case CreditsResetPeriod, CreditsResetAlways:
	default:
		return errors.New("CREDITS_RESET_POLICY must be 'period' or 'always'")
	}
	if c.WebhookEventTTL <= 0 {
		return errors.New("WEBHOOK_EVENT_TTL must be positive")
	}
	return nil
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FIREBASE_PROJECT_ID", "jam-ai-test")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("CLIENT_URL", "http://localhost:3000")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, CreditsResetPeriod, cfg.CreditsResetPolicy)
	assert.Equal(t, 72*time.Hour, cfg.WebhookEventTTL)
	assert.Equal(t, "billing-events", cfg.BillingEventsQueue)
	assert.Empty(t, cfg.RedisAddr)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STRIPE_PRO_PRICE_ID", "price_pro")
	t.Setenv("STRIPE_TEAMS_PRICE_ID", "price_teams")
	t.Setenv("CREDITS_RESET_POLICY", "always")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("WEBHOOK_EVENT_TTL", "24h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "price_pro", cfg.StripeProPriceID)
	assert.Equal(t, "price_teams", cfg.StripeTeamsPriceID)
	assert.Equal(t, CreditsResetAlways, cfg.CreditsResetPolicy)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 24*time.Hour, cfg.WebhookEventTTL)
}

func TestLoadConfig_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{"missing project", "FIREBASE_PROJECT_ID", "FIREBASE_PROJECT_ID is required"},
		{"missing stripe key", "STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY is required"},
		{"missing webhook secret", "STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET is required"},
		{"missing client url", "CLIENT_URL", "CLIENT_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_RejectsUnknownResetPolicy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CREDITS_RESET_POLICY", "sometimes")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDITS_RESET_POLICY")
}

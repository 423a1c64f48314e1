package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "IDR", cfg.Billing.DefaultCurrency)
	assert.Equal(t, 10, cfg.Billing.RecentPayments)
	assert.Equal(t, 10*time.Second, cfg.Billing.TransactionTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Billing.StatsCacheTTL)
	assert.False(t, cfg.Overdue.Enabled)
	assert.Equal(t, "@hourly", cfg.Overdue.Schedule)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BILLING_DEFAULT_CURRENCY", " usd ")
	t.Setenv("BILLING_RECENT_PAYMENTS", "500")
	t.Setenv("BILLING_TX_TIMEOUT", "3s")
	t.Setenv("BILLING_STATS_CACHE_TTL", "not-a-duration")
	t.Setenv("ENABLE_OVERDUE_SWEEP", "true")
	t.Setenv("OVERDUE_SWEEP_SCHEDULE", "*/15 * * * *")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Billing.DefaultCurrency)
	assert.Equal(t, 10, cfg.Billing.RecentPayments)
	assert.Equal(t, 3*time.Second, cfg.Billing.TransactionTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Billing.StatsCacheTTL)
	assert.True(t, cfg.Overdue.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Overdue.Schedule)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

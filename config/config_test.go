package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PROVIDER_REQUEST_LIMIT", "PROVIDER_DAILY_LIMIT",
		"TICK_PACING_MS", "ALERT_CHECK_INTERVAL_SECONDS", "AUTO_REGISTER_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.ProviderRequestLimit)
	assert.Equal(t, 500, cfg.ProviderDailyLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.TickPacingDelay)
	assert.Equal(t, time.Duration(0), cfg.AlertCheckInterval)
	assert.False(t, cfg.AutoRegisterEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALPHA_VANTAGE_KEYS", "KEY1, KEY2 ,,KEY3")
	t.Setenv("PROVIDER_REQUEST_LIMIT", "10")
	t.Setenv("TICK_PACING_MS", "500")
	t.Setenv("ALERT_CHECK_INTERVAL_SECONDS", "60")
	t.Setenv("AUTO_REGISTER_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"KEY1", "KEY2", "KEY3"}, cfg.AlphaVantageKeys)
	assert.Equal(t, 10, cfg.ProviderRequestLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.TickPacingDelay)
	assert.Equal(t, time.Minute, cfg.AlertCheckInterval)
	assert.True(t, cfg.AutoRegisterEnabled)
}

func TestGetEnvIntBadValue(t *testing.T) {
	t.Setenv("PROVIDER_REQUEST_LIMIT", "not-a-number")
	assert.Equal(t, 5, getEnvInt("PROVIDER_REQUEST_LIMIT", 5))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", maskHost("db"))
	assert.Equal(t, "loc***", maskHost("localhost"))
	assert.Equal(t, "db.examp***mple.cloud", maskHost("db.example.host.example.cloud"))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/habits")
	t.Setenv("PORT", "")
	t.Setenv("AI_TIMEOUT_SECONDS", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("REMINDERS_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, 20*time.Second, cfg.AITimeout)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.True(t, cfg.RemindersEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/habits")
	t.Setenv("PORT", "8080")
	t.Setenv("AI_TIMEOUT_SECONDS", "7")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("REMINDERS_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 7*time.Second, cfg.AITimeout)
	assert.Equal(t, 30, cfg.RateLimitBurst, "invalid numbers fall back to the default")
	assert.False(t, cfg.RemindersEnabled)
}

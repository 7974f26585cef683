package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed_WhitelistedTargets(t *testing.T) {
	cfg := ServerConfig{MudWhitelist: DefaultWhitelist}

	assert.True(t, cfg.Allowed("3k.org", 3000))
	assert.True(t, cfg.Allowed("3scapes.org", 3200))
	assert.False(t, cfg.Allowed("3k.org", 4000))
	assert.False(t, cfg.Allowed("evil.example", 23))
}

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ADMIN_KEY", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DISCORD_WEBHOOK_TIMEOUT_MS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5000*1e6, float64(cfg.DiscordWebhookTimeout))
}

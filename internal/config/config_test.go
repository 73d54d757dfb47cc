package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GRAPH_API_BASE_URL", "")
	t.Setenv("ANTHROPIC_MODEL", "")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://graph.facebook.com/v19.0", cfg.GraphAPIBaseURL)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.AnthropicModel)
	assert.Equal(t, 15*time.Second, cfg.WhatsAppHTTPTimeout)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("WHATSAPP_TOKEN", "tok_abc")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "12345")
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "verify_me")
	t.Setenv("WHATSAPP_HTTP_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://user@host/db", cfg.DatabaseURL)
	assert.Equal(t, "tok_abc", cfg.WhatsAppToken)
	assert.Equal(t, "12345", cfg.WhatsAppPhoneNumberID)
	assert.Equal(t, 5*time.Second, cfg.WhatsAppHTTPTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("WHATSAPP_HTTP_TIMEOUT", "not-a-duration")
	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.WhatsAppHTTPTimeout)
}

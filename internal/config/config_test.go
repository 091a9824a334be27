package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, []string{"12:30", "16:00"}, cfg.DigestSlots)
	assert.Equal(t, "Asia/Kolkata", cfg.DigestTimezone)
	assert.False(t, cfg.MailConfigured())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DIGEST_SLOTS", " 09:00, 13:15 ,18:45 ")
	t.Setenv("ACCESS_TTL", "30m")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")
	t.Setenv("SMTP_USERNAME", "reports@example.com")
	t.Setenv("SMTP_PASSWORD", "app-password")

	cfg := Load()
	assert.Equal(t, []string{"09:00", "13:15", "18:45"}, cfg.DigestSlots)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 10, cfg.RateLimitPerMin)
	assert.True(t, cfg.MailConfigured())
	assert.Equal(t, "reports@example.com", cfg.MailFrom, "MAIL_FROM defaults to the SMTP username")
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("SEED_DEMO", "maybe")

	cfg := Load()
	assert.Equal(t, 12*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.False(t, cfg.SeedDemo)
}

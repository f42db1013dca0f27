package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: test-secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, time.Minute, cfg.Authz.CacheTTL)
	assert.Equal(t, model.FallbackAdmin, cfg.Onboarding.Fallback())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry())
	assert.Empty(t, cfg.Outbox.PayloadKey)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\noutbox:\n  batch_size: 20\n")
	t.Setenv("ONBOARDING_JWT_SECRET", "from-env")
	t.Setenv("ONBOARDING_OUTBOX_BATCH_SIZE", "7")
	t.Setenv("ONBOARDING_ONBOARDING_CONTACT_FALLBACK", "self")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, model.FallbackSelf, cfg.Onboarding.Fallback())
}

func TestLoadPathFromEnvironment(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: test-secret\nserver:\n  port: 9100\n")
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)

	explicit := writeConfig(t, "jwt:\n  secret: test-secret\nserver:\n  port: 9200\n")
	cfg, err = Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port, "an explicit path wins over the environment")

	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yml"))
	_, err = Load("")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadRequiresSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "jwt.secret")
}

func validConfig() Config {
	return Config{
		JWT:        JWTConfig{Secret: "s"},
		Onboarding: OnboardingConfig{ContactFallback: string(model.FallbackAdmin)},
		Outbox: OutboxConfig{
			BatchSize:     1,
			PollInterval:  time.Second,
			RetryAttempts: 1,
			RetryDelay:    time.Second,
			MaxRetries:    1,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown fallback", func(c *Config) { c.Onboarding.ContactFallback = "clinic" }, "contact_fallback"},
		{"zero batch size", func(c *Config) { c.Outbox.BatchSize = 0 }, "batch_size"},
		{"aes-256 key", func(c *Config) {
			c.Outbox.PayloadKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
		}, ""},
		{"short key", func(c *Config) {
			c.Outbox.PayloadKey = base64.StdEncoding.EncodeToString(make([]byte, 10))
		}, "16, 24 or 32 bytes"},
		{"bad base64", func(c *Config) { c.Outbox.PayloadKey = "%%%" }, "base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

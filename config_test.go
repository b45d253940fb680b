package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 24*time.Hour, cfg.Token.AccessTTL)
	assert.Equal(t, "hs256", cfg.Token.SigningMethod)
	assert.Equal(t, 60*time.Second, cfg.Token.Leeway)
	assert.Empty(t, cfg.Token.PrivateKey)

	assert.EqualValues(t, 19456, cfg.Password.Memory)
	assert.EqualValues(t, 2, cfg.Password.Time)
	assert.EqualValues(t, 1, cfg.Password.Parallelism)
	assert.EqualValues(t, 16, cfg.Password.SaltLength)
	assert.EqualValues(t, 32, cfg.Password.KeyLength)
	assert.Equal(t, 8, cfg.Password.MinPasswordBytes)
	assert.Equal(t, 4096, cfg.Password.MaxPasswordBytes)
	assert.True(t, cfg.Password.UpgradeOnLogin)

	assert.Equal(t, "acr", cfg.Store.RedisPrefix)
	assert.True(t, cfg.Security.EnableIPThrottle)
	assert.Equal(t, 5, cfg.Security.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Security.LoginCooldownDuration)
	assert.Equal(t, "al", cfg.Security.RatePrefix)

	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Metrics.Enabled)

	require.Error(t, cfg.Validate(), "no signing key")
	cfg.Token.PrivateKey = testTokenKey
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFrom(t *testing.T) {
	ctx := context.Background()

	cfg, err := LoadConfigFrom(ctx, envconfig.MapLookuper(map[string]string{
		"TOKEN_KEY":               testTokenKey,
		"AUTH_ACCESS_TTL":         "2h",
		"AUTH_ARGON2_MEMORY":      "65536",
		"AUTH_MAX_LOGIN_ATTEMPTS": "3",
		"AUTH_IP_THROTTLE":        "false",
		"AUTH_AUDIT_ENABLED":      "true",
		"AUTH_REDIS_PREFIX":       "blog",
	}))
	require.NoError(t, err)

	assert.Equal(t, testTokenKey, cfg.Token.PrivateKey)
	assert.Equal(t, 2*time.Hour, cfg.Token.AccessTTL)
	assert.EqualValues(t, 65536, cfg.Password.Memory)
	assert.Equal(t, 3, cfg.Security.MaxLoginAttempts)
	assert.False(t, cfg.Security.EnableIPThrottle)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "blog", cfg.Store.RedisPrefix)
}

func TestLoadConfigFromRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	_, err := LoadConfigFrom(ctx, envconfig.MapLookuper(nil))
	require.ErrorContains(t, err, "TOKEN_KEY")

	_, err = LoadConfigFrom(ctx, envconfig.MapLookuper(map[string]string{
		"TOKEN_KEY":       testTokenKey,
		"AUTH_ACCESS_TTL": "soon",
	}))
	require.ErrorContains(t, err, "load config")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"baseline", func(*Config) {}, true},
		{"zero ttl", func(c *Config) { c.Token.AccessTTL = 0 }, false},
		{"unknown method", func(c *Config) { c.Token.SigningMethod = "rs256" }, false},
		{"ed25519 without public key", func(c *Config) { c.Token.SigningMethod = "ed25519" }, false},
		{"negative leeway", func(c *Config) { c.Token.Leeway = -time.Second }, false},
		{"zero leeway", func(c *Config) { c.Token.Leeway = 0 }, true},
		{"min password zero", func(c *Config) { c.Password.MinPasswordBytes = 0 }, false},
		{"max below min", func(c *Config) { c.Password.MaxPasswordBytes = 4 }, false},
		{"empty store prefix", func(c *Config) { c.Store.RedisPrefix = "" }, false},
		{"zero attempts", func(c *Config) { c.Security.MaxLoginAttempts = 0 }, false},
		{"zero cooldown", func(c *Config) { c.Security.LoginCooldownDuration = 0 }, false},
		{"shared prefix", func(c *Config) { c.Security.RatePrefix = "acr" }, false},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, false},
		{"audit buffer ignored when disabled", func(c *Config) { c.Audit.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

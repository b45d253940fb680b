package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduitblog/authcore/jwt"
	"github.com/conduitblog/authcore/password"
	"github.com/sethvargo/go-envconfig"
)

// Config is the complete engine configuration. The env tags name the
// variables read by [LoadConfig]; their defaults are the values returned by
// [DefaultConfig].
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Store    StoreConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls access token issuance. Keys are kept as strings so a
// PEM block or a raw secret can come straight from the environment.
type TokenConfig struct {
	AccessTTL     time.Duration `env:"AUTH_ACCESS_TTL, default=24h"`
	SigningMethod string        `env:"AUTH_SIGNING_METHOD, default=hs256"`
	// PrivateKey is the HS256 secret or the Ed25519 private key.
	PrivateKey string        `env:"TOKEN_KEY"`
	PublicKey  string        `env:"TOKEN_PUBLIC_KEY"`
	KeyID      string        `env:"TOKEN_KEY_ID"`
	Leeway     time.Duration `env:"AUTH_TOKEN_LEEWAY, default=60s"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters for new hashes and the
// password length policy.
type PasswordConfig struct {
	Memory           uint32 `env:"AUTH_ARGON2_MEMORY, default=19456"`
	Time             uint32 `env:"AUTH_ARGON2_TIME, default=2"`
	Parallelism      uint8  `env:"AUTH_ARGON2_PARALLELISM, default=1"`
	SaltLength       uint32 `env:"AUTH_ARGON2_SALT_LENGTH, default=16"`
	KeyLength        uint32 `env:"AUTH_ARGON2_KEY_LENGTH, default=32"`
	MinPasswordBytes int    `env:"AUTH_PASSWORD_MIN_BYTES, default=8"`
	MaxPasswordBytes int    `env:"AUTH_PASSWORD_MAX_BYTES, default=4096"`
	// Ceilings on the cost read from a stored hash; zero picks the password
	// package defaults.
	MaxVerifyMemory uint32 `env:"AUTH_ARGON2_VERIFY_MAX_MEMORY"`
	MaxVerifyTime   uint32 `env:"AUTH_ARGON2_VERIFY_MAX_TIME"`
	// UpgradeOnLogin rehashes stored credentials whose parameters are weaker
	// than the ones above after a successful login.
	UpgradeOnLogin bool `env:"AUTH_PASSWORD_UPGRADE_ON_LOGIN, default=true"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig locates the Redis credential store. Addr and DB are only used
// by the command-line tools; the engine takes a ready client.
type StoreConfig struct {
	Addr        string `env:"REDIS_ADDR, default=localhost:6379"`
	DB          int    `env:"REDIS_DB, default=0"`
	RedisPrefix string `env:"AUTH_REDIS_PREFIX, default=acr"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls failed-login throttling.
type SecurityConfig struct {
	EnableIPThrottle      bool          `env:"AUTH_IP_THROTTLE, default=true"`
	MaxLoginAttempts      int           `env:"AUTH_MAX_LOGIN_ATTEMPTS, default=5"`
	LoginCooldownDuration time.Duration `env:"AUTH_LOGIN_COOLDOWN, default=15m"`
	RatePrefix            string        `env:"AUTH_RATE_PREFIX, default=al"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"AUTH_AUDIT_ENABLED, default=false"`
	BufferSize int  `env:"AUTH_AUDIT_BUFFER, default=1024"`
	DropIfFull bool `env:"AUTH_AUDIT_DROP_IF_FULL, default=true"`
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `env:"AUTH_METRICS_ENABLED, default=false"`
	EnableLatencyHistograms bool `env:"AUTH_METRICS_LATENCY, default=false"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration produced by an empty environment.
// It has no signing key, so it does not validate until one is supplied.
func DefaultConfig() Config {
	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(nil))
	if err != nil {
		panic("authcore: default config tags are invalid: " + err.Error())
	}
	return cfg
}

// LoadConfig reads the configuration from the process environment and
// validates it.
func LoadConfig(ctx context.Context) (Config, error) {
	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom is LoadConfig with an explicit variable source.
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	cfg, err := loadConfig(ctx, lookuper)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) hasherConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
		MaxVerifyMemory:  c.Password.MaxVerifyMemory,
		MaxVerifyTime:    c.Password.MaxVerifyTime,
	}
}

func (c Config) tokenConfig(now func() time.Time) jwt.Config {
	cfg := jwt.Config{
		SigningMethod: jwt.SigningMethod(c.Token.SigningMethod),
		Leeway:        c.Token.Leeway,
		KeyID:         c.Token.KeyID,
		Now:           now,
	}
	if c.Token.PrivateKey != "" {
		cfg.PrivateKey = []byte(c.Token.PrivateKey)
	}
	if c.Token.PublicKey != "" {
		cfg.PublicKey = []byte(c.Token.PublicKey)
	}
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field constraints only; the password and jwt packages
// re-validate their own parameters when the engine is built.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodHS256:
		if c.Token.PrivateKey == "" {
			return errors.New("hs256 requires Token PrivateKey (TOKEN_KEY)")
		}
	case jwt.MethodEd25519:
		if c.Token.PublicKey == "" {
			return errors.New("ed25519 requires Token PublicKey")
		}
	default:
		return errors.New("unsupported Token SigningMethod")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	// Password
	if c.Password.MinPasswordBytes < 1 {
		return errors.New("Password MinPasswordBytes must be >= 1")
	}
	if c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes {
		return errors.New("Password MaxPasswordBytes must be >= MinPasswordBytes")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.RatePrefix == "" || c.Security.RatePrefix == c.Store.RedisPrefix {
		return errors.New("Security RatePrefix must be non-empty and differ from Store RedisPrefix")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

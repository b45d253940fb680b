package authcore

import (
	"errors"
	"time"

	"github.com/conduitblog/authcore/internal/audit"
	"github.com/conduitblog/authcore/internal/rate"
	"github.com/conduitblog/authcore/internal/stores"
	"github.com/conduitblog/authcore/jwt"
	"github.com/conduitblog/authcore/password"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Builder instances are intended to be
// configured during initialization and used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder that starts from [DefaultConfig]; a signing key must still be supplied
// through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the credential store and the login
// limiter. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for audit events. The sink only receives events when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the engine clock used for token claims and record
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and constructs the Engine. A Builder
// can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher, err := password.NewHasher(cfg.hasherConfig())
	if err != nil {
		return nil, err
	}

	// Unknown emails are verified against this hash so that a miss costs
	// the same as a wrong password.
	dummy, err := hasher.HashPassword("authcore-dummy-credential")
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(cfg.tokenConfig(now))
	if err != nil {
		return nil, err
	}

	limiter := rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		Prefix:                cfg.Security.RatePrefix,
	})
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine := &Engine{
		config:      cfg,
		store:       stores.NewCredentialStore(b.redis, cfg.Store.RedisPrefix),
		rateLimiter: limiter,
		audit:       dispatcher,
		metrics:     NewMetrics(cfg.Metrics),
		hasher:      hasher,
		dummyHash:   dummy,
		tokens:      tokens,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         now,
	}

	b.built = true

	return engine, nil
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduitblog/authcore/internal/audit"
	"github.com/conduitblog/authcore/internal/rate"
	"github.com/conduitblog/authcore/internal/stores"
	"github.com/conduitblog/authcore/jwt"
	"github.com/conduitblog/authcore/password"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Engine runs the account operations. Engine instances are built once by
// [Builder.Build] and are safe for concurrent use.
type Engine struct {
	config      Config
	store       *stores.CredentialStore
	rateLimiter *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	hasher      *password.Hasher
	dummyHash   password.Hash
	tokens      *jwt.Manager
	validate    *validator.Validate
	now         func() time.Time
}

// Close flushes buffered audit events. It does not close the Redis client.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. Audit events still queued when ctx ends
// are delivered in the background.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.audit.Shutdown(ctx)
}

// AuditDropped reports audit events lost to a full queue or an expired context.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot is safe to call concurrently with engine operations.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.tokens != nil
}

// checkPasswordPolicy enforces the configured length window, in bytes.
func (e *Engine) checkPasswordPolicy(plaintext string) error {
	n := len(plaintext)
	if n < e.config.Password.MinPasswordBytes {
		return fmt.Errorf("%w: password shorter than %d bytes", ErrPasswordPolicy, e.config.Password.MinPasswordBytes)
	}
	if n > e.config.Password.MaxPasswordBytes {
		return fmt.Errorf("%w: password longer than %d bytes", ErrPasswordPolicy, e.config.Password.MaxPasswordBytes)
	}
	return nil
}

func (e *Engine) hashPassword(plaintext string) (password.Hash, error) {
	start := time.Now()
	defer e.observe(MetricPasswordHashLatency, start)

	h, err := e.hasher.HashPassword(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return password.Hash{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return password.Hash{}, err
	}
	return h, nil
}

// verifyStored re-parses the stored PHC text and verifies plaintext against
// it. Legacy modular-crypt bcrypt strings are accepted as well.
func (e *Engine) verifyStored(plaintext, stored string) (password.Hash, error) {
	start := time.Now()
	defer e.observe(MetricPasswordHashLatency, start)

	var (
		h   password.Hash
		err error
	)
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") {
		h, err = password.FromModularCrypt(stored)
		if err != nil {
			h, err = password.Parse(stored)
		}
	} else {
		h, err = password.Parse(stored)
	}
	if err != nil {
		return password.Hash{}, password.ErrInvalidPassword
	}

	if err := e.hasher.VerifyPassword(plaintext, h); err != nil {
		return password.Hash{}, err
	}
	return h, nil
}

func (e *Engine) issueToken(subject jwt.Subject, data AccessData) (string, time.Time, error) {
	payload := jwt.NewPayloadAt(e.now(), e.config.Token.AccessTTL, subject, data)
	token, err := jwt.Issue(e.tokens, payload)
	if err != nil {
		return "", time.Time{}, err
	}
	e.metricInc(MetricTokenIssued)
	return token, payload.ExpiresAt(), nil
}

func userFromRecord(record *stores.CredentialRecord) (User, error) {
	id, err := uuid.Parse(record.UserID)
	if err != nil {
		return User{}, fmt.Errorf("stored user id %q: %w", record.UserID, err)
	}

	user := User{
		ID:        id,
		Username:  record.Username,
		Email:     record.Email,
		Version:   record.Version,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
	}
	if record.UpdatedAt != 0 {
		updated := time.Unix(record.UpdatedAt, 0).UTC()
		user.UpdatedAt = &updated
	}
	return user, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrCredentialNotFound):
		return ErrUserNotFound
	case errors.Is(err, stores.ErrCredentialEmailTaken), errors.Is(err, stores.ErrCredentialUsernameTaken):
		return fmt.Errorf("%w: %w", ErrAccountExists, err)
	case errors.Is(err, stores.ErrCredentialVersionConflict):
		return ErrCredentialConflict
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduitblog/authcore/internal/rate"
	"github.com/conduitblog/authcore/internal/stores"
	"github.com/conduitblog/authcore/jwt"
)

// Login looks the credential up by email, verifies the password against the
// stored PHC string and returns a signed access token for the user subject.
// Unknown emails and wrong passwords both yield [ErrInvalidCredentials].
// Failed attempts count against the per-email and per-IP budgets; once spent,
// Login returns [ErrLoginRateLimited] without touching the credential.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	email := stores.NormalizeEmail(req.Email)

	if err := e.validate.StructCtx(ctx, req); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_request",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrLoginRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	record, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, stores.ErrCredentialNotFound) {
			return nil, mapStoreError(err)
		}
		_ = e.hasher.VerifyPassword(req.Password, e.dummyHash)
		return nil, e.loginFailed(ctx, email, ip, "", "unknown_email")
	}

	stored, err := e.verifyStored(req.Password, record.PasswordHash)
	if err != nil {
		return nil, e.loginFailed(ctx, email, ip, record.UserID, "password")
	}

	rehashed := false
	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(stored) {
		if updated, ok := e.rehash(ctx, record, req.Password); ok {
			record = updated
			rehashed = true
		}
	}

	user, err := userFromRecord(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	token, expiresAt, err := e.issueToken(jwt.UserSubject(user.ID), AccessData{
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}

	// The window expires on its own if this fails.
	_ = e.rateLimiter.ResetLogin(ctx, email)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, record.UserID, nil, nil)

	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
		Rehashed:  rehashed,
	}, nil
}

// loginFailed records a failed attempt. When the attempt cannot be counted the
// login fails closed with ErrBackendUnavailable, as CheckLogin does.
func (e *Engine) loginFailed(ctx context.Context, email, ip, userID, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})

	if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ErrInvalidCredentials
}

// rehash stores plaintext under the current parameters. It is best effort: a
// failure keeps the old, still valid, hash.
func (e *Engine) rehash(ctx context.Context, record *stores.CredentialRecord, plaintext string) (*stores.CredentialRecord, bool) {
	upgraded, err := e.hashPassword(plaintext)
	if err != nil {
		return nil, false
	}
	updated, err := e.store.UpdatePasswordHash(ctx, record.UserID, record.Version, upgraded.String(), e.now().Unix())
	if err != nil {
		return nil, false
	}

	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, record.UserID, nil, nil)
	return updated, true
}

// IssuePublicToken signs an access token for the public subject, used by
// anonymous readers of the API.
func (e *Engine) IssuePublicToken(ctx context.Context) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token, _, err := e.issueToken(jwt.PublicSubject(), AccessData{})
	return token, err
}

// Authenticate verifies token and returns the identity it carries. Every
// failure is reported as [ErrUnauthorized]; the wrapped jwt error tells
// expired, mis-signed and malformed tokens apart for server-side logs and must
// not be shown to the client. Authenticate never reads the credential store.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	payload, err := jwt.Verify[AccessData](e.tokens, token)
	e.observe(MetricAuthenticateLatency, start)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		e.emitAudit(ctx, auditEventAuthenticateFailure, false, "", ErrUnauthorized, func() map[string]string {
			return map[string]string{
				"reason": tokenFailureReason(err),
			}
		})
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	e.metricInc(MetricAuthenticateSuccess)

	return &Identity{
		Subject:   payload.Subject(),
		Username:  payload.Data.Username,
		Email:     payload.Data.Email,
		IssuedAt:  payload.IssuedAt(),
		ExpiresAt: payload.ExpiresAt(),
	}, nil
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrInvalidAlgorithm):
		return "algorithm"
	case errors.Is(err, jwt.ErrInvalidPayload):
		return "payload"
	default:
		return "token"
	}
}

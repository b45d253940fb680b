package authcore

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"
)

// ChangePassword verifies oldPassword against the stored hash, hashes
// newPassword with the current parameters and writes it only if the
// credential has not changed since it was read; otherwise it returns
// [ErrCredentialConflict] and the caller may retry. A successful change also
// clears the failed-login counter for the account's email.
func (e *Engine) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == uuid.Nil || oldPassword == "" {
		return e.passwordChangeFailed(ctx, "", ErrPasswordPolicy, "invalid_input")
	}
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return e.passwordChangeFailed(ctx, userID.String(), err, "password_policy")
	}

	record, err := e.store.GetByID(ctx, userID.String())
	if err != nil {
		return e.passwordChangeFailed(ctx, userID.String(), mapStoreError(err), "lookup_failed")
	}

	if _, err := e.verifyStored(oldPassword, record.PasswordHash); err != nil {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, record.UserID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(oldPassword), []byte(newPassword)) == 1 {
		return e.passwordChangeFailed(ctx, record.UserID, ErrPasswordReuse, "reuse")
	}

	newHash, err := e.hashPassword(newPassword)
	if err != nil {
		return e.passwordChangeFailed(ctx, record.UserID, err, "hash_failed")
	}

	if _, err := e.store.UpdatePasswordHash(ctx, record.UserID, record.Version, newHash.String(), e.now().Unix()); err != nil {
		mapped := mapStoreError(err)
		if errors.Is(mapped, ErrCredentialConflict) {
			e.metricInc(MetricPasswordChangeConflict)
		}
		return e.passwordChangeFailed(ctx, record.UserID, mapped, "update_failed")
	}

	_ = e.rateLimiter.ResetLogin(ctx, record.Email)

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, record.UserID, nil, nil)

	return nil
}

func (e *Engine) passwordChangeFailed(ctx context.Context, userID string, err error, reason string) error {
	e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/conduitblog/authcore/internal/stores"
	"github.com/conduitblog/authcore/password"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Register validates req, rejects a taken email or username with
// [ErrAccountExists], hashes the password with the current Argon2id
// parameters and stores the new credential under a fresh UUID. Emails are
// matched case-insensitively; usernames exactly.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := e.validate.StructCtx(ctx, req); err != nil {
		return nil, e.registerFailed(ctx, fmt.Errorf("%w: %s", ErrRegistrationInvalid, validationMessage(err)), "invalid_request")
	}
	if strings.ContainsFunc(req.Username, unicode.IsSpace) {
		return nil, e.registerFailed(ctx, fmt.Errorf("%w: username must not contain whitespace", ErrRegistrationInvalid), "invalid_request")
	}
	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return nil, e.registerFailed(ctx, err, "password_policy")
	}

	emailTaken, usernameTaken, err := e.store.Exists(ctx, req.Email, req.Username)
	if err != nil {
		return nil, e.registerFailed(ctx, mapStoreError(err), "lookup_failed")
	}
	if emailTaken || usernameTaken {
		return nil, e.registerDuplicate(ctx, duplicateError(emailTaken, usernameTaken))
	}

	hash, err := e.hashPassword(req.Password)
	if err != nil {
		return nil, e.registerFailed(ctx, err, "hash_failed")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, e.registerFailed(ctx, fmt.Errorf("%w: %v", password.ErrCryptographic, err), "id_failed")
	}

	record := &stores.CredentialRecord{
		UserID:       id.String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash.String(),
		Version:      1,
		CreatedAt:    e.now().Unix(),
	}
	if err := e.store.Create(ctx, record); err != nil {
		mapped := mapStoreError(err)
		if errors.Is(mapped, ErrAccountExists) {
			return nil, e.registerDuplicate(ctx, mapped)
		}
		return nil, e.registerFailed(ctx, mapped, "create_failed")
	}

	user, err := userFromRecord(record)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, record.UserID, nil, nil)

	return &user, nil
}

func (e *Engine) registerFailed(ctx context.Context, err error, reason string) error {
	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func (e *Engine) registerDuplicate(ctx context.Context, err error) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", err, nil)
	return err
}

func duplicateError(emailTaken, usernameTaken bool) error {
	switch {
	case emailTaken && usernameTaken:
		return fmt.Errorf("%w: email and username are taken", ErrAccountExists)
	case emailTaken:
		return fmt.Errorf("%w: email is taken", ErrAccountExists)
	default:
		return fmt.Errorf("%w: username is taken", ErrAccountExists)
	}
}

// validationMessage flattens validator errors into "field: rule" pairs. The
// rejected values are never echoed.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

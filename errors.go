package authcore

import "errors"

var (
	// ErrUnauthorized is returned by Authenticate for every token failure. The
	// precise jwt error is wrapped for server-side logs.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAccountExists reports a registration whose email or username is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrRegistrationInvalid is an exported constant or variable used by the authentication engine.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrCredentialConflict means the credential changed between read and write.
	ErrCredentialConflict = errors.New("credential modified concurrently")
	// ErrBackendUnavailable is an exported constant or variable used by the authentication engine.
	ErrBackendUnavailable = errors.New("credential backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

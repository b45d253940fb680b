package jwt

import "errors"

var (
	// ErrInvalidToken is returned for tokens that are not well-formed compact
	// JWS or whose signature does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidAlgorithm is returned when the token's algorithm or key id is
	// not the one configured, or when signing fails.
	ErrInvalidAlgorithm = errors.New("invalid token algorithm")
	// ErrTokenExpired is returned when exp lies beyond the configured leeway.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidPayload is returned when a correctly signed token carries
	// missing or malformed claims.
	ErrInvalidPayload = errors.New("invalid token payload")
)

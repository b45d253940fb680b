package password

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedAlgorithm is returned when a hash names an algorithm or
	// algorithm variant this package cannot compute.
	ErrUnsupportedAlgorithm = errors.New("unsupported password hash algorithm")
	// ErrInvalidPasswordHash is returned when a stored hash string is not a
	// well-formed PHC string.
	ErrInvalidPasswordHash = errors.New("invalid password hash")
	// ErrInvalidPassword is the single verification failure. Callers cannot
	// distinguish a wrong password from an uncomputable stored hash.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrCryptographic is returned when entropy or the hash primitive fails.
	ErrCryptographic = errors.New("password hash computation failed")
	// ErrConfig is returned for out-of-range algorithm parameters.
	ErrConfig = errors.New("invalid password hash configuration")
	// ErrOutputTooShort is returned when the requested output is below the algorithm minimum.
	ErrOutputTooShort = fmt.Errorf("%w: output too short", ErrConfig)
	// ErrOutputTooLong is returned when the requested output exceeds the algorithm maximum.
	ErrOutputTooLong = fmt.Errorf("%w: output too long", ErrConfig)
	// ErrPasswordTooLong is returned by HashPassword when the plaintext exceeds Config.MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

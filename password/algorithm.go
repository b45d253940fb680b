package password

import "fmt"

// Algorithm identifies a password hashing function named by the leading
// segment of a PHC string.
type Algorithm uint8

const (
	// Argon2d is the data-dependent Argon2 variant.
	Argon2d Algorithm = iota + 1
	// Argon2i is the data-independent Argon2 variant.
	Argon2i
	// Argon2id is the hybrid Argon2 variant and the one used for new hashes.
	Argon2id
	// Bcrypt is bcrypt in its 2b revision. The 2a identifier parses to it as well.
	Bcrypt
)

// ParseAlgorithm maps a PHC identifier to an Algorithm.
func ParseAlgorithm(id string) (Algorithm, error) {
	switch id {
	case "argon2d":
		return Argon2d, nil
	case "argon2i":
		return Argon2i, nil
	case "argon2id":
		return Argon2id, nil
	case "2b", "2a":
		return Bcrypt, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, id)
	}
}

// String returns the PHC identifier. Bcrypt always serializes as "2b".
func (a Algorithm) String() string {
	switch a {
	case Argon2d:
		return "argon2d"
	case Argon2i:
		return "argon2i"
	case Argon2id:
		return "argon2id"
	case Bcrypt:
		return "2b"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// IsArgon2 reports whether a belongs to the Argon2 family.
func (a Algorithm) IsArgon2() bool {
	return a == Argon2d || a == Argon2i || a == Argon2id
}

func (a Algorithm) valid() bool {
	return a >= Argon2d && a <= Bcrypt
}

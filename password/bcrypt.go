package password

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptSaltChars   = 22
	bcryptOutputChars = 31
)

var bcryptEncoding = base64.NewEncoding("./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789").
	WithPadding(base64.NoPadding)

// FromModularCrypt converts a modular crypt bcrypt string such as
// "$2a$10$<salt><hash>" into its PHC form "$2b$c=10$<salt>$<hash>".
func FromModularCrypt(mcf string) (Hash, error) {
	parts := strings.Split(mcf, "$")
	if len(parts) != 4 || parts[0] != "" {
		return Hash{}, fmt.Errorf("%w: malformed bcrypt string", ErrInvalidPasswordHash)
	}
	alg, err := ParseAlgorithm(parts[1])
	if err != nil {
		return Hash{}, err
	}
	if alg != Bcrypt {
		return Hash{}, fmt.Errorf("%w: %s is not bcrypt", ErrUnsupportedAlgorithm, alg)
	}

	cost, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) != 2 {
		return Hash{}, fmt.Errorf("%w: malformed bcrypt cost", ErrInvalidPasswordHash)
	}

	body := parts[3]
	if len(body) != bcryptSaltChars+bcryptOutputChars {
		return Hash{}, fmt.Errorf("%w: malformed bcrypt body", ErrInvalidPasswordHash)
	}
	salt, err := bcryptEncoding.DecodeString(body[:bcryptSaltChars])
	if err != nil {
		return Hash{}, fmt.Errorf("%w: malformed bcrypt salt", ErrInvalidPasswordHash)
	}
	output, err := bcryptEncoding.DecodeString(body[bcryptSaltChars:])
	if err != nil {
		return Hash{}, fmt.Errorf("%w: malformed bcrypt hash", ErrInvalidPasswordHash)
	}

	return NewBcryptHash(BcryptParams{Cost: cost}, salt, output)
}

// ToModularCrypt renders a PHC bcrypt hash in the "$2b$NN$..." form
// understood by golang.org/x/crypto/bcrypt.
func ToModularCrypt(h Hash) (string, error) {
	params, err := BcryptParamsFromHash(h)
	if err != nil {
		return "", err
	}
	if len(h.salt) == 0 || len(h.output) == 0 {
		return "", fmt.Errorf("%w: bcrypt hash requires salt and output", ErrInvalidPasswordHash)
	}

	return fmt.Sprintf("$2b$%02d$%s%s",
		params.Cost,
		bcryptEncoding.EncodeToString(h.salt),
		bcryptEncoding.EncodeToString(h.output),
	), nil
}

func verifyBcrypt(plaintext string, stored Hash) error {
	mcf, err := ToModularCrypt(stored)
	if err != nil {
		return ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(mcf), []byte(plaintext)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

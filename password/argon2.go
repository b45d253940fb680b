package password

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// DefaultMaxPasswordBytes caps plaintext length before hashing.
	DefaultMaxPasswordBytes = 4096
	// DefaultMaxVerifyMemory is the largest stored memory cost, in KiB, that
	// verification will compute (1 GiB).
	DefaultMaxVerifyMemory uint32 = 1024 * 1024
	// DefaultMaxVerifyTime is the largest stored iteration count that
	// verification will compute.
	DefaultMaxVerifyTime uint32 = 64

	// maxLanes is what x/crypto/argon2 accepts as a parallelism degree.
	maxLanes uint32 = 255
)

// Config holds the Argon2id cost parameters used for new hashes. Stored
// hashes are always verified with the parameters they carry.
type Config struct {
	// Memory in kibibytes.
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes bounds the plaintext fed to the hash function. Zero
	// selects DefaultMaxPasswordBytes.
	MaxPasswordBytes int
	// MaxVerifyMemory and MaxVerifyTime bound the cost taken from a stored
	// hash. A hash above either bound fails verification without being
	// computed. Zero selects the package default, raised to Memory or Time
	// when those are larger.
	MaxVerifyMemory uint32
	MaxVerifyTime   uint32
}

// DefaultConfig returns the Argon2id defaults: 19 MiB, two passes, one lane,
// 16-byte salt and 32-byte output.
func DefaultConfig() Config {
	return Config{
		Memory:           19 * 1024,
		Time:             2,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
		MaxVerifyMemory:  DefaultMaxVerifyMemory,
		MaxVerifyTime:    DefaultMaxVerifyTime,
	}
}

// Hasher produces Argon2id PHC hashes and verifies stored Argon2 and bcrypt
// hashes. It is immutable after construction and safe for concurrent use.
type Hasher struct {
	config Config
	random io.Reader
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if cfg.MaxVerifyMemory == 0 {
		cfg.MaxVerifyMemory = max(DefaultMaxVerifyMemory, cfg.Memory)
	}
	if cfg.MaxVerifyTime == 0 {
		cfg.MaxVerifyTime = max(DefaultMaxVerifyTime, cfg.Time)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Hasher{config: cfg, random: rand.Reader}, nil
}

// NewDefaultHasher returns a Hasher with DefaultConfig. It panics if the
// defaults fail validation, which only a broken build can cause.
func NewDefaultHasher() *Hasher {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("password: default config rejected: %v", err))
	}
	return h
}

// Config returns the hasher's configuration.
func (h *Hasher) Config() Config {
	return h.config
}

// HashPassword derives an Argon2id (version 0x13) hash of plaintext with a
// fresh random salt. The plaintext bytes are used as given, without Unicode
// normalization.
func (h *Hasher) HashPassword(plaintext string) (Hash, error) {
	if len(plaintext) > h.config.MaxPasswordBytes {
		return Hash{}, ErrPasswordTooLong
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return Hash{}, fmt.Errorf("%w: read salt: %v", ErrCryptographic, err)
	}

	output := argon2.IDKey(
		[]byte(plaintext),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	hash, err := NewArgon2Hash(Argon2id, argon2.Version, h.params(), salt, output)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrCryptographic, err)
	}
	return hash, nil
}

// VerifyPassword recomputes stored's function over plaintext using the
// parameters embedded in stored and compares in constant time. Every failure,
// including an uncomputable stored hash, is reported as ErrInvalidPassword.
func (h *Hasher) VerifyPassword(plaintext string, stored Hash) error {
	if len(stored.salt) == 0 || len(stored.output) == 0 {
		return ErrInvalidPassword
	}
	if len(plaintext) > h.config.MaxPasswordBytes {
		return ErrInvalidPassword
	}

	switch alg := stored.algorithm; {
	case alg.IsArgon2():
		return h.verifyArgon2(plaintext, stored)
	case alg == Bcrypt:
		return verifyBcrypt(plaintext, stored)
	default:
		return ErrInvalidPassword
	}
}

// Verify parses encoded and verifies plaintext against it. A malformed
// encoding is reported as ErrInvalidPassword.
func (h *Hasher) Verify(plaintext, encoded string) error {
	stored, err := Parse(encoded)
	if err != nil {
		return ErrInvalidPassword
	}
	return h.VerifyPassword(plaintext, stored)
}

// NeedsUpgrade reports whether stored should be replaced with a fresh hash:
// it is not Argon2id at the current version, or any cost is weaker than the
// hasher's, or the output length differs.
func (h *Hasher) NeedsUpgrade(stored Hash) bool {
	if stored.algorithm != Argon2id {
		return true
	}
	if v, ok := stored.Version(); ok && v != argon2.Version {
		return true
	}
	params, err := Argon2ParamsFromHash(stored)
	if err != nil {
		return true
	}

	if h.config.Memory > params.MemoryCost {
		return true
	}
	if h.config.Time > params.IterationCost {
		return true
	}
	if uint32(h.config.Parallelism) > params.Parallelism {
		return true
	}
	if h.config.KeyLength != params.OutputLen {
		return true
	}

	return false
}

func (h *Hasher) params() Argon2Params {
	return Argon2Params{
		MemoryCost:    h.config.Memory,
		IterationCost: h.config.Time,
		Parallelism:   uint32(h.config.Parallelism),
		OutputLen:     h.config.KeyLength,
	}
}

func (h *Hasher) verifyArgon2(plaintext string, stored Hash) error {
	params, err := Argon2ParamsFromHash(stored)
	if err != nil {
		return ErrInvalidPassword
	}
	if params.MemoryCost > h.config.MaxVerifyMemory ||
		params.IterationCost > h.config.MaxVerifyTime ||
		params.Parallelism > maxLanes {
		return ErrInvalidPassword
	}
	// A missing version segment means 0x13.
	if v, ok := stored.Version(); ok && v != argon2.Version {
		return ErrInvalidPassword
	}
	// x/crypto/argon2 does not take associated data.
	if len(params.Data) > 0 {
		return ErrInvalidPassword
	}

	var computed []byte
	switch stored.algorithm {
	case Argon2id:
		computed = argon2.IDKey([]byte(plaintext), stored.salt, params.IterationCost, params.MemoryCost, uint8(params.Parallelism), params.OutputLen)
	case Argon2i:
		computed = argon2.Key([]byte(plaintext), stored.salt, params.IterationCost, params.MemoryCost, uint8(params.Parallelism), params.OutputLen)
	default:
		// argon2d has no implementation in x/crypto.
		return ErrInvalidPassword
	}

	if subtle.ConstantTimeCompare(computed, stored.output) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return fmt.Errorf("%w: memory must be >= 8192 KiB", ErrConfig)
	}
	if cfg.Time < minTimeCost {
		return fmt.Errorf("%w: time must be >= 1", ErrConfig)
	}
	if cfg.Parallelism < minParallelism {
		return fmt.Errorf("%w: parallelism must be >= 1", ErrConfig)
	}
	if cfg.SaltLength < minSaltLength || cfg.SaltLength > 48 {
		return fmt.Errorf("%w: salt length must be between 16 and 48", ErrConfig)
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxArgon2Output {
		return fmt.Errorf("%w: key length must be between 16 and 64", ErrConfig)
	}
	if cfg.MaxPasswordBytes < 0 {
		return fmt.Errorf("%w: max password bytes must be >= 0", ErrConfig)
	}
	if cfg.MaxVerifyMemory < cfg.Memory || cfg.MaxVerifyTime < cfg.Time {
		return fmt.Errorf("%w: verify ceiling below the hashing cost", ErrConfig)
	}

	return nil
}

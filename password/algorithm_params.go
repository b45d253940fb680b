package password

import (
	"fmt"
)

const (
	// DefaultOutputLen is the Argon2 output length assumed when a hash carries
	// no output segment.
	DefaultOutputLen uint32 = 32

	minArgon2Output  uint32 = 4
	maxArgon2Output  uint32 = 64
	maxArgon2Lanes   uint32 = 255
	maxArgon2KeyID          = 8
	maxArgon2Data           = 32
	minBcryptCost           = 4
	maxBcryptCost           = 31
	bcryptSaltBytes         = 16
	bcryptOutputBytes       = 23
)

// AlgorithmParams is the typed configuration projected out of a Hash's
// generic parameter list. It is implemented by Argon2Params and BcryptParams.
type AlgorithmParams interface {
	// Validate checks the configuration against the algorithm's accepted ranges.
	Validate() error
	// Params renders the configuration as an ordered PHC parameter list.
	Params() (Params, error)

	algorithmParams()
}

// Argon2Params configures the Argon2 family. Costs are validated by Validate,
// not at construction.
type Argon2Params struct {
	// MemoryCost in kibibytes.
	MemoryCost    uint32
	IterationCost uint32
	Parallelism   uint32
	OutputLen     uint32
	KeyID         []byte
	Data          []byte
}

func (Argon2Params) algorithmParams() {}

// Validate reports out-of-range costs as ErrConfig and bad output lengths as
// ErrOutputTooShort or ErrOutputTooLong.
func (p Argon2Params) Validate() error {
	if p.Parallelism < 1 || p.Parallelism > maxArgon2Lanes {
		return fmt.Errorf("%w: parallelism %d out of range", ErrConfig, p.Parallelism)
	}
	if p.IterationCost < 1 {
		return fmt.Errorf("%w: iteration cost must be >= 1", ErrConfig)
	}
	if uint64(p.MemoryCost) < 8*uint64(p.Parallelism) {
		return fmt.Errorf("%w: memory cost must be >= 8 KiB per lane", ErrConfig)
	}
	if p.OutputLen < minArgon2Output {
		return ErrOutputTooShort
	}
	if p.OutputLen > maxArgon2Output {
		return ErrOutputTooLong
	}
	if len(p.KeyID) > maxArgon2KeyID {
		return fmt.Errorf("%w: keyid exceeds %d bytes", ErrConfig, maxArgon2KeyID)
	}
	if len(p.Data) > maxArgon2Data {
		return fmt.Errorf("%w: associated data exceeds %d bytes", ErrConfig, maxArgon2Data)
	}
	return nil
}

// Params renders m, t and p, followed by keyid and data when set. The output
// length is carried by the hash segment and is not written.
func (p Argon2Params) Params() (Params, error) {
	if err := p.Validate(); err != nil {
		return Params{}, err
	}

	var out Params
	var err error
	if out, err = out.WithDecimal("m", p.MemoryCost); err != nil {
		return Params{}, err
	}
	if out, err = out.WithDecimal("t", p.IterationCost); err != nil {
		return Params{}, err
	}
	if out, err = out.WithDecimal("p", p.Parallelism); err != nil {
		return Params{}, err
	}
	if len(p.KeyID) > 0 {
		if out, err = out.With("keyid", b64.EncodeToString(p.KeyID)); err != nil {
			return Params{}, err
		}
	}
	if len(p.Data) > 0 {
		if out, err = out.With("data", b64.EncodeToString(p.Data)); err != nil {
			return Params{}, err
		}
	}
	return out, nil
}

// Argon2ParamsFromHash projects h onto Argon2Params. m, t and p are required;
// keyid and data are optional; any other names are ignored. The output length
// is taken from the stored hash bytes, or DefaultOutputLen when absent.
func Argon2ParamsFromHash(h Hash) (Argon2Params, error) {
	if !h.algorithm.IsArgon2() {
		return Argon2Params{}, fmt.Errorf("%w: %s is not an argon2 hash", ErrUnsupportedAlgorithm, h.algorithm)
	}

	var out Argon2Params
	required := []struct {
		name string
		dst  *uint32
	}{
		{"m", &out.MemoryCost},
		{"t", &out.IterationCost},
		{"p", &out.Parallelism},
	}
	for _, field := range required {
		v, ok, err := h.params.Decimal(field.name)
		if err != nil {
			return Argon2Params{}, err
		}
		if !ok {
			return Argon2Params{}, fmt.Errorf("%w: missing parameter %q", ErrConfig, field.name)
		}
		*field.dst = v
	}

	if raw, ok := h.params.Get("keyid"); ok {
		keyID, err := b64.DecodeString(raw)
		if err != nil {
			return Argon2Params{}, fmt.Errorf("%w: malformed keyid", ErrConfig)
		}
		out.KeyID = keyID
	}
	if raw, ok := h.params.Get("data"); ok {
		data, err := b64.DecodeString(raw)
		if err != nil {
			return Argon2Params{}, fmt.Errorf("%w: malformed associated data", ErrConfig)
		}
		out.Data = data
	}

	out.OutputLen = DefaultOutputLen
	if len(h.output) > 0 {
		out.OutputLen = uint32(len(h.output))
	}

	if err := out.Validate(); err != nil {
		return Argon2Params{}, err
	}
	return out, nil
}

// BcryptParams configures bcrypt.
type BcryptParams struct {
	Cost int
}

func (BcryptParams) algorithmParams() {}

// Validate checks the cost against bcrypt's accepted range.
func (p BcryptParams) Validate() error {
	if p.Cost < minBcryptCost || p.Cost > maxBcryptCost {
		return fmt.Errorf("%w: bcrypt cost %d out of range", ErrConfig, p.Cost)
	}
	return nil
}

// Params renders the cost as the "c" parameter.
func (p BcryptParams) Params() (Params, error) {
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return Params{}.WithDecimal("c", uint32(p.Cost))
}

// BcryptParamsFromHash projects h onto BcryptParams. When present, the salt
// must be 16 bytes and the output 23 bytes.
func BcryptParamsFromHash(h Hash) (BcryptParams, error) {
	if h.algorithm != Bcrypt {
		return BcryptParams{}, fmt.Errorf("%w: %s is not a bcrypt hash", ErrUnsupportedAlgorithm, h.algorithm)
	}

	cost, ok, err := h.params.Decimal("c")
	if err != nil {
		return BcryptParams{}, err
	}
	if !ok {
		return BcryptParams{}, fmt.Errorf("%w: missing parameter %q", ErrConfig, "c")
	}
	if cost > maxBcryptCost {
		return BcryptParams{}, fmt.Errorf("%w: bcrypt cost %d out of range", ErrConfig, cost)
	}
	out := BcryptParams{Cost: int(cost)}
	if err := out.Validate(); err != nil {
		return BcryptParams{}, err
	}

	if len(h.salt) > 0 && len(h.salt) != bcryptSaltBytes {
		return BcryptParams{}, fmt.Errorf("%w: bcrypt salt must be %d bytes", ErrConfig, bcryptSaltBytes)
	}
	switch n := len(h.output); {
	case n == 0:
	case n < bcryptOutputBytes:
		return BcryptParams{}, ErrOutputTooShort
	case n > bcryptOutputBytes:
		return BcryptParams{}, ErrOutputTooLong
	}
	return out, nil
}

// AlgorithmParams projects h onto the typed configuration of its algorithm.
func (h Hash) AlgorithmParams() (AlgorithmParams, error) {
	switch {
	case h.algorithm.IsArgon2():
		return Argon2ParamsFromHash(h)
	case h.algorithm == Bcrypt:
		return BcryptParamsFromHash(h)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, h.algorithm)
	}
}

// NewArgon2Hash builds a versioned Argon2 hash from typed parameters.
func NewArgon2Hash(alg Algorithm, version uint32, params Argon2Params, salt, output []byte) (Hash, error) {
	if !alg.IsArgon2() {
		return Hash{}, fmt.Errorf("%w: %s is not an argon2 algorithm", ErrUnsupportedAlgorithm, alg)
	}
	encoded, err := params.Params()
	if err != nil {
		return Hash{}, err
	}
	h, err := NewHash(alg, encoded, salt, output)
	if err != nil {
		return Hash{}, err
	}
	return h.WithVersion(version), nil
}

// NewBcryptHash builds a bcrypt hash from typed parameters.
func NewBcryptHash(params BcryptParams, salt, output []byte) (Hash, error) {
	encoded, err := params.Params()
	if err != nil {
		return Hash{}, err
	}
	return NewHash(Bcrypt, encoded, salt, output)
}

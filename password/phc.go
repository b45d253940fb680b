package password

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	separator = '$'

	maxEncodedLength = 512
	minSaltChars     = 4
	maxSaltChars     = 64
	maxOutputBytes   = 128
)

// b64 is the PHC salt/hash encoding. Strict decoding rejects non-zero
// trailing bits so every accepted string re-encodes to itself.
var b64 = base64.RawStdEncoding.Strict()

// Hash is a parsed PHC string:
//
//	$<id>[$v=<version>][$<param>=<value>(,<param>=<value>)*][$<salt>[$<hash>]]
//
// A Hash never carries an output without a salt. Accessors return copies;
// Hash values are safe to share between goroutines.
type Hash struct {
	algorithm  Algorithm
	version    uint32
	hasVersion bool
	params     Params
	salt       []byte
	output     []byte
}

// NewHash assembles a Hash from its parts. salt and output may be nil; an
// output without a salt is rejected.
func NewHash(alg Algorithm, params Params, salt, output []byte) (Hash, error) {
	if !alg.valid() {
		return Hash{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	if len(output) > 0 && len(salt) == 0 {
		return Hash{}, fmt.Errorf("%w: output without salt", ErrInvalidPasswordHash)
	}
	if len(salt) > 0 {
		if n := b64.EncodedLen(len(salt)); n < minSaltChars || n > maxSaltChars {
			return Hash{}, fmt.Errorf("%w: salt length %d out of range", ErrInvalidPasswordHash, len(salt))
		}
	}
	if len(output) > maxOutputBytes {
		return Hash{}, fmt.Errorf("%w: output length %d out of range", ErrInvalidPasswordHash, len(output))
	}

	return Hash{
		algorithm: alg,
		params:    params,
		salt:      bytes.Clone(nonEmpty(salt)),
		output:    bytes.Clone(nonEmpty(output)),
	}, nil
}

// WithVersion returns a copy of h carrying the version segment.
func (h Hash) WithVersion(version uint32) Hash {
	h.version = version
	h.hasVersion = true
	return h
}

// Algorithm returns the hashing function named by the identifier segment.
func (h Hash) Algorithm() Algorithm { return h.algorithm }

// Version returns the version segment and whether it was present. An absent
// version is distinct from version 0.
func (h Hash) Version() (uint32, bool) { return h.version, h.hasVersion }

// Params returns the parameter segment.
func (h Hash) Params() Params { return h.params }

// Salt returns a copy of the decoded salt, or nil when absent.
func (h Hash) Salt() []byte { return bytes.Clone(h.salt) }

// Output returns a copy of the decoded hash output, or nil when absent.
func (h Hash) Output() []byte { return bytes.Clone(h.output) }

// Equal reports whether h and other serialize identically.
func (h Hash) Equal(other Hash) bool {
	return h.algorithm == other.algorithm &&
		h.hasVersion == other.hasVersion &&
		h.version == other.version &&
		h.params.Equal(other.params) &&
		bytes.Equal(h.salt, other.salt) &&
		bytes.Equal(h.output, other.output)
}

// String serializes h. Optional segments are omitted without leaving
// trailing separators, and the output segment is only written after a salt.
func (h Hash) String() string {
	var b strings.Builder
	b.WriteByte(separator)
	b.WriteString(h.algorithm.String())
	if h.hasVersion {
		b.WriteByte(separator)
		b.WriteString("v=")
		b.WriteString(strconv.FormatUint(uint64(h.version), 10))
	}
	if h.params.Len() > 0 {
		b.WriteByte(separator)
		b.WriteString(h.params.String())
	}
	if len(h.salt) > 0 {
		b.WriteByte(separator)
		b.WriteString(b64.EncodeToString(h.salt))
		if len(h.output) > 0 {
			b.WriteByte(separator)
			b.WriteString(b64.EncodeToString(h.output))
		}
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Parse decodes a PHC string. Structural problems return
// ErrInvalidPasswordHash; a well-formed identifier this package does not know
// returns ErrUnsupportedAlgorithm.
func Parse(encoded string) (Hash, error) {
	if len(encoded) > maxEncodedLength {
		return Hash{}, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPasswordHash, maxEncodedLength)
	}
	if encoded == "" || encoded[0] != separator {
		return Hash{}, fmt.Errorf("%w: missing leading separator", ErrInvalidPasswordHash)
	}

	segments := strings.Split(encoded[1:], string(separator))
	id := segments[0]
	if !validParamName(id) {
		return Hash{}, fmt.Errorf("%w: malformed identifier", ErrInvalidPasswordHash)
	}
	alg, err := ParseAlgorithm(id)
	if err != nil {
		return Hash{}, err
	}

	h := Hash{algorithm: alg}
	rest := segments[1:]

	if len(rest) > 0 && strings.HasPrefix(rest[0], "v=") {
		v, err := parseDecimal(rest[0][2:])
		if err != nil {
			return Hash{}, fmt.Errorf("%w: malformed version", ErrInvalidPasswordHash)
		}
		h.version, h.hasVersion = v, true
		rest = rest[1:]
	}

	if len(rest) > 0 && strings.ContainsRune(rest[0], '=') {
		params, err := parseParams(rest[0])
		if err != nil {
			return Hash{}, err
		}
		h.params = params
		rest = rest[1:]
	}

	if len(rest) > 0 {
		if n := len(rest[0]); n < minSaltChars || n > maxSaltChars {
			return Hash{}, fmt.Errorf("%w: salt length out of range", ErrInvalidPasswordHash)
		}
		salt, err := b64.DecodeString(rest[0])
		if err != nil {
			return Hash{}, fmt.Errorf("%w: malformed salt encoding", ErrInvalidPasswordHash)
		}
		h.salt = salt
		rest = rest[1:]
	}

	if len(rest) > 0 {
		output, err := b64.DecodeString(rest[0])
		if err != nil || len(output) == 0 {
			return Hash{}, fmt.Errorf("%w: malformed hash encoding", ErrInvalidPasswordHash)
		}
		if len(output) > maxOutputBytes {
			return Hash{}, fmt.Errorf("%w: output length out of range", ErrInvalidPasswordHash)
		}
		h.output = output
		rest = rest[1:]
	}

	if len(rest) > 0 {
		return Hash{}, fmt.Errorf("%w: unexpected trailing segment", ErrInvalidPasswordHash)
	}

	return h, nil
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

package jwt

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"

	// DefaultLeeway is the clock skew tolerated on exp.
	DefaultLeeway = 60 * time.Second

	maxLeeway     = 2 * time.Minute
	maxTokenBytes = 8 << 10
	minHMACKey    = 32
)

// Config carries the signing material. It is supplied once at construction;
// rotation is expressed through KeyID and VerifyKeys.
type Config struct {
	// SigningMethod defaults to MethodHS256.
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256, or the Ed25519 private key
	// (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 public key (raw or PEM). Unused for HS256.
	PublicKey []byte
	// Leeway tolerated on exp. Zero selects DefaultLeeway.
	Leeway time.Duration
	// KeyID, when set, is written to the kid header and required on verify.
	KeyID string
	// VerifyKeys maps kid to verification key for externally rotated keys.
	VerifyKeys map[string][]byte
	// Now overrides the clock used for claim validation.
	Now func() time.Time
}

// Manager issues and verifies access tokens. It holds no mutable state and is
// safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = DefaultLeeway
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKey {
			return nil, fmt.Errorf("hs256 requires a key of at least %d bytes", minHMACKey)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < minHMACKey {
				return nil, fmt.Errorf("hs256 verify key for kid %q is too short", kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Leeway returns the effective exp leeway.
func (m *Manager) Leeway() time.Duration {
	return m.config.Leeway
}

// Issue signs payload. The same payload and key always produce the same
// token.
func Issue[T any](m *Manager, payload Payload[T]) (string, error) {
	if !payload.sub.valid() {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidPayload)
	}
	data, err := json.Marshal(payload.Data)
	if err != nil {
		return "", fmt.Errorf("%w: encode data: %v", ErrInvalidPayload, err)
	}

	token := jwt.NewWithClaims(m.method(), &claims{
		ExpiresAt: numericDate(payload.exp),
		IssuedAt:  numericDate(payload.iat),
		Issuer:    payload.iss.String(),
		Subject:   payload.sub.String(),
		Data:      data,
	})
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.signKey()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlgorithm, err)
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAlgorithm, err)
	}
	return signed, nil
}

// Verify checks the token's algorithm, signature, issuer and expiration (with
// leeway) and decodes its data claim into T. exp, iss and sub are required;
// nbf and aud are ignored.
func Verify[T any](m *Manager, tokenStr string) (Payload[T], error) {
	if len(tokenStr) > maxTokenBytes {
		return Payload[T]{}, fmt.Errorf("%w: token exceeds %d bytes", ErrInvalidToken, maxTokenBytes)
	}

	var c claims
	if _, err := m.parser().ParseWithClaims(tokenStr, &c, m.keyFunc); err != nil {
		return Payload[T]{}, classify(err)
	}

	sub, err := ParseSubject(c.Subject)
	if err != nil {
		return Payload[T]{}, err
	}
	if len(c.Data) == 0 {
		return Payload[T]{}, fmt.Errorf("%w: missing data claim", ErrInvalidPayload)
	}
	var data T
	if err := json.Unmarshal(c.Data, &data); err != nil {
		return Payload[T]{}, fmt.Errorf("%w: decode data: %v", ErrInvalidPayload, err)
	}

	return Payload[T]{
		exp:  fromNumericDate(c.ExpiresAt),
		iat:  fromNumericDate(c.IssuedAt),
		iss:  Issuer{},
		sub:  sub,
		Data: data,
	}, nil
}

// NewToken issues payload and returns it alongside the encoded token.
func NewToken[T any](m *Manager, payload Payload[T]) (Token[T], error) {
	encoded, err := Issue(m, payload)
	if err != nil {
		return Token[T]{}, err
	}
	return Token[T]{Encoded: encoded, Payload: payload}, nil
}

// ParseToken verifies encoded and returns it alongside its payload.
func ParseToken[T any](m *Manager, encoded string) (Token[T], error) {
	payload, err := Verify[T](m, encoded)
	if err != nil {
		return Token[T]{}, err
	}
	return Token[T]{Encoded: encoded, Payload: payload}, nil
}

func (m *Manager) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(IssuerName),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithTimeFunc(m.config.Now),
	)
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.keyBytesToVerifyKey(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.verifyKey()
}

// classify folds golang-jwt's error tree onto this package's four kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidAlgorithm, err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) signKey() (any, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		if len(m.config.PrivateKey) == 0 {
			return nil, errors.New("manager has no signing key")
		}
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		return m.config.PrivateKey, nil
	}
}

func (m *Manager) verifyKey() (any, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.PrivateKey, nil
	}
}

func (m *Manager) keyBytesToVerifyKey(key []byte) (any, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(key)
	default:
		return key, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

package jwt

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is the claim set of an access token. Data carries the caller's
// application claims and travels under the "data" claim.
type Payload[T any] struct {
	exp  uint64
	iat  uint64
	iss  Issuer
	sub  Subject
	Data T
}

// NewPayload stamps iat with the current time and exp with iat+expiration.
// A negative expiration produces an already expired payload; exp is clamped
// at the Unix epoch.
func NewPayload[T any](expiration time.Duration, subject Subject, data T) Payload[T] {
	return NewPayloadAt(time.Now(), expiration, subject, data)
}

// NewPayloadAt is NewPayload with an explicit issue time.
func NewPayloadAt[T any](now time.Time, expiration time.Duration, subject Subject, data T) Payload[T] {
	return Payload[T]{
		exp:  unixSeconds(now.Add(expiration)),
		iat:  unixSeconds(now),
		iss:  Issuer{},
		sub:  subject,
		Data: data,
	}
}

// ExpiresAt returns the exp claim.
func (p Payload[T]) ExpiresAt() time.Time { return time.Unix(int64(p.exp), 0) }

// IssuedAt returns the iat claim.
func (p Payload[T]) IssuedAt() time.Time { return time.Unix(int64(p.iat), 0) }

// Issuer returns the iss claim.
func (p Payload[T]) Issuer() Issuer { return p.iss }

// Subject returns the sub claim.
func (p Payload[T]) Subject() Subject { return p.sub }

// Expired reports whether exp is strictly before the current time. It applies
// no leeway.
func (p Payload[T]) Expired() bool {
	return p.ExpiredAt(time.Now())
}

// ExpiredAt is Expired evaluated at now.
func (p Payload[T]) ExpiredAt(now time.Time) bool {
	return p.exp < unixSeconds(now)
}

// Token pairs an encoded token with the payload it carries.
type Token[T any] struct {
	Encoded string
	Payload Payload[T]
}

// claims is the wire form of Payload. It implements jwt.Claims without
// not-before or audience, so neither is ever validated.
type claims struct {
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
	Issuer    string           `json:"iss,omitempty"`
	Subject   string           `json:"sub,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

func (c *claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c *claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c *claims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c *claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

func unixSeconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

func numericDate(seconds uint64) *jwt.NumericDate {
	return jwt.NewNumericDate(time.Unix(int64(seconds), 0))
}

func fromNumericDate(d *jwt.NumericDate) uint64 {
	if d == nil {
		return 0
	}
	return unixSeconds(d.Time)
}

// Package jwt issues and verifies signed access tokens whose claims carry a
// typed application payload.
//
// Tokens are compact JWS (HS256 by default, Ed25519 optional) with the claims
// exp, iat, iss, sub and data. Verification requires exp, iss and sub, pins
// the issuer to [IssuerName] and tolerates [DefaultLeeway] of clock skew on
// exp. Not-before and audience are never checked.
//
// Every verification failure maps to one of [ErrInvalidToken],
// [ErrInvalidAlgorithm], [ErrTokenExpired] or [ErrInvalidPayload]. Tokens
// cannot be revoked; they stay valid until exp plus leeway.
package jwt

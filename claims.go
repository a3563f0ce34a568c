package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind tags a bearer token as one of the two tiers we issue. Access
// tokens are short lived and authorize resource requests; refresh tokens are
// longer lived and are accepted only by the token refresh use case.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// ClaimsVersion is the current claim schema version. Tokens carrying a
// different version are rejected rather than defaulted.
const ClaimsVersion = 1

// TokenClaims is the fixed claim schema embedded in every token we issue.
// Kind travels as a claim so a single decode recovers the token type.
type TokenClaims struct {
	jwt.RegisteredClaims
	Kind    TokenKind `json:"kind"`
	Version int       `json:"ver"`
}

// Subject returns the token subject (the username).
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// IsAccess reports whether the token authorizes resource requests.
func (c *TokenClaims) IsAccess() bool {
	return c.Kind == KindAccess
}

// IsRefresh reports whether the token is usable only to mint new access tokens.
func (c *TokenClaims) IsRefresh() bool {
	return c.Kind == KindRefresh
}

// Expired reports whether the token expiry has passed at the given instant.
func (c *TokenClaims) Expired(now time.Time) bool {
	if c.RegisteredClaims.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.RegisteredClaims.ExpiresAt.Time)
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// checkSchema rejects tokens that decode but do not carry the claim shape we
// issue: unknown kind, missing expiry, or a schema version we do not speak.
func (c *TokenClaims) checkSchema() error {
	if c.Kind != KindAccess && c.Kind != KindRefresh {
		return ErrTokenMalformed
	}
	if c.Version != ClaimsVersion {
		return ErrTokenMalformed
	}
	if c.RegisteredClaims.ExpiresAt == nil {
		return ErrTokenMalformed
	}
	return nil
}

package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenPair is what a successful login or refresh hands back to the client.
// Refresh returns the same refresh token it was given; only access tokens
// are re-minted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenCodec issues and decodes signed bearer tokens.
type TokenCodec interface {
	Issue(subject string, kind TokenKind, ttl time.Duration) (string, error)
	Decode(raw string) (*TokenClaims, error)
}

// RevocationStore invalidates still-unexpired tokens, e.g. on logout.
// Implementations must be safe for concurrent use; a Revoke that returned is
// visible to any IsRevoked call sequenced after it.
type RevocationStore interface {
	Revoke(token string)
	IsRevoked(token string) bool
}

// PrincipalSource maps a verified token subject to an authenticated
// principal. The request gate depends on this, not on a concrete store.
type PrincipalSource interface {
	Resolve(ctx context.Context, username string) (*Principal, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetAuthScheme() string
	GetTokenLookup() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetBlacklistCapacity() int
	GetBlacklistSafetyMargin() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetRequireEmailVerification() bool
}

// DefaultLogger returns the stdout fallback logger used when no Logger is
// configured.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

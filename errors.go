package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced at the boundary. Token failures share one user-facing
// message so callers cannot probe which check a token failed.
const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeTokenWrongKind     = "TOKEN_WRONG_KIND"
	TextCodeRateLimited        = "RATE_LIMITED"
	TextCodeAlreadyExists      = "ALREADY_EXISTS"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
)

const invalidTokenMessage = "invalid or expired token"

// ErrInvalidCredentials never reveals whether the username or the password
// was wrong.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is the expiry sub-case of an invalid token. Callers may log
// it at lower severity than a tampering attempt; the boundary message is the
// same as for any other token failure.
var ErrTokenExpired = goerrors.New(invalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers bad encoding and signature mismatch.
var ErrTokenMalformed = goerrors.New(invalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked marks a blacklisted token.
var ErrTokenRevoked = goerrors.New(invalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenWrongKind is returned when a refresh token is presented where an
// access token is required, or the other way around.
var ErrTokenWrongKind = goerrors.New(invalidTokenMessage, goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenWrongKind).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password cannot be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword wraps the bcrypt mismatch with our taxonomy.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountDisabled marks an account that exists but has been disabled.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountUnverified marks an account that has not completed email
// verification.
var ErrAccountUnverified = goerrors.New("account email is not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited is reported distinctly from authentication failure so
// clients back off rather than retry credentials.
var ErrRateLimited = goerrors.New("too many requests, retry later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// AlreadyExistsError reports a registration conflict on the given field.
func AlreadyExistsError(field string) *goerrors.Error {
	return goerrors.New(field+" is already taken", goerrors.CategoryConflict).
		WithTextCode(TextCodeAlreadyExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"field": field})
}

// NotFoundError reports a lookup miss for a named resource.
func NotFoundError(resource string) *goerrors.Error {
	return goerrors.New(resource+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"resource": resource})
}

// BusinessRuleError reports a domain rule violation with a stable code,
// e.g. resending verification for an already verified account.
func BusinessRuleError(message, code string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(code).
		WithCode(goerrors.CodeBadRequest)
}

// IsTokenError reports whether err belongs to the token failure taxonomy.
func IsTokenError(err error) bool {
	code := errorTextCode(err)
	switch code {
	case TextCodeTokenExpired, TextCodeTokenMalformed, TextCodeTokenRevoked, TextCodeTokenWrongKind:
		return true
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errorTextCode(err) == TextCodeTokenExpired
}

// IsRateLimitedError will check for exhausted rate buckets
func IsRateLimitedError(err error) bool {
	return errorTextCode(err) == TextCodeRateLimited
}

func errorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

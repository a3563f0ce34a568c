package jwtware

import (
	"errors"
	"strings"

	"github.com/goliatone/go-router"
	auth "github.com/medassist/go-auth"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// Outcome is the result of evaluating the credentials on a request. Every
// outcome except Authenticated lets the request continue anonymously; routes
// that need a principal enforce it themselves, see RequireAuthenticated.
type Outcome int

const (
	// OutcomeNoToken means the request carried no usable credential.
	OutcomeNoToken Outcome = iota
	// OutcomeRevoked means the token was explicitly revoked. Checked before
	// the signature so a logged-out token is dead even if it still verifies.
	OutcomeRevoked
	// OutcomeMalformed covers undecodable tokens and signature mismatches.
	OutcomeMalformed
	// OutcomeExpired means the token verified but its lifetime has passed.
	OutcomeExpired
	// OutcomeWrongKind means a refresh token was presented where an access
	// token is required.
	OutcomeWrongKind
	// OutcomeUnknownSubject means the token verified but no active account
	// backs its subject.
	OutcomeUnknownSubject
	// OutcomeAuthenticated means a principal was established.
	OutcomeAuthenticated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoToken:
		return "no_token"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeExpired:
		return "expired"
	case OutcomeWrongKind:
		return "wrong_kind"
	case OutcomeUnknownSubject:
		return "unknown_subject"
	case OutcomeAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

type Config struct {
	// Filter skips the middleware entirely when it returns true.
	Filter func(router.Context) bool

	// Codec verifies and decodes raw tokens. Required.
	Codec auth.TokenCodec
	// Revocations is consulted before the token is decoded. Required.
	Revocations auth.RevocationStore
	// Principals resolves a verified subject to an account. Required.
	Principals auth.PrincipalSource

	// ContextKey is the Locals key the principal is stored under.
	ContextKey string
	// TokenLookup is a comma separated list of sources, e.g.
	// "header:Authorization,cookie:jwt,query:auth_token,param:token".
	TokenLookup string
	AuthScheme  string

	// OutcomeListener observes every evaluation, authenticated or not.
	OutcomeListener func(ctx router.Context, outcome Outcome)

	Logger auth.Logger
}

// New builds the authentication gate. The gate never rejects a request: it
// either attaches a principal under ContextKey or passes the request through
// unauthenticated. Pair it with RequireAuthenticated or RequirePermission on
// the routes that need enforcement.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			outcome, principal := cfg.evaluate(ctx)

			cfg.observe(ctx, outcome)

			if outcome == OutcomeAuthenticated {
				ctx.Locals(cfg.ContextKey, principal)
			}

			return ctx.Next()
		}
	}
}

// evaluate runs the gate's checks in order: extract, revocation, decode,
// kind, subject resolution. The revocation check deliberately precedes
// decoding.
func (cfg *Config) evaluate(ctx router.Context) (Outcome, *auth.Principal) {
	raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
	if err != nil || raw == "" {
		return OutcomeNoToken, nil
	}

	if cfg.Revocations.IsRevoked(raw) {
		cfg.Logger.Warn("revoked token presented")
		return OutcomeRevoked, nil
	}

	claims, err := cfg.Codec.Decode(raw)
	if err != nil {
		if auth.IsTokenExpiredError(err) {
			cfg.Logger.Debug("expired token presented")
			return OutcomeExpired, nil
		}
		cfg.Logger.Warn("malformed token presented: %v", err)
		return OutcomeMalformed, nil
	}

	if !claims.IsAccess() {
		cfg.Logger.Warn("non-access token presented to gate by %s", claims.Subject())
		return OutcomeWrongKind, nil
	}

	principal, err := cfg.Principals.Resolve(ctx.Context(), claims.Subject())
	if err != nil {
		cfg.Logger.Warn("token subject %s did not resolve: %v", claims.Subject(), err)
		return OutcomeUnknownSubject, nil
	}

	return OutcomeAuthenticated, principal
}

func (cfg *Config) observe(ctx router.Context, outcome Outcome) {
	if cfg.OutcomeListener != nil {
		cfg.OutcomeListener(ctx, outcome)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Codec == nil {
		panic("AUTH: JWT middleware configuration: Codec is required.")
	}

	if cfg.Revocations == nil {
		panic("AUTH: JWT middleware configuration: Revocations is required.")
	}

	if cfg.Principals == nil {
		panic("AUTH: JWT middleware configuration: Principals is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.Logger == nil {
		cfg.Logger = auth.DefaultLogger()
	}

	return cfg
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		//header:Authorization
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		return ParseSchemeCredential(a, authScheme)
	}
}

// ParseSchemeCredential strips the auth scheme prefix off a header value,
// e.g. "Bearer <token>". Scheme comparison is case insensitive.
func ParseSchemeCredential(value, authScheme string) (string, error) {
	authScheme = strings.TrimSpace(authScheme)
	l := len(authScheme)
	if l == 0 {
		return "", ErrJWTMissingOrMalformed
	}
	if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) {
		token := strings.TrimSpace(value[l:])
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
	return "", ErrJWTMissingOrMalformed
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

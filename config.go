package auth

import (
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig is an environment-sourced Config implementation. Hosts with
// their own configuration layer can implement Config directly instead.
type EnvConfig struct {
	SigningKey               string
	Issuer                   string
	Audience                 []string
	ContextKey               string
	AuthScheme               string
	TokenLookup              string
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	BlacklistCapacity        int
	BlacklistSafetyMargin    time.Duration
	VerificationTokenTTL     time.Duration
	ResetTokenTTL            time.Duration
	RequireEmailVerification bool
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig reads AUTH_* environment variables, applying defaults for
// everything except the signing secret.
func NewEnvConfig() *EnvConfig {
	cfg := &EnvConfig{
		SigningKey:               os.Getenv("AUTH_SIGNING_KEY"),
		Issuer:                   envString("AUTH_ISSUER", "medassist"),
		ContextKey:               envString("AUTH_CONTEXT_KEY", "principal"),
		AuthScheme:               envString("AUTH_SCHEME", "Bearer"),
		TokenLookup:              envString("AUTH_TOKEN_LOOKUP", ""),
		AccessTokenTTL:           envDuration("AUTH_ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:          envDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BlacklistCapacity:        envInt("AUTH_BLACKLIST_CAPACITY", DefaultBlacklistCapacity),
		BlacklistSafetyMargin:    envDuration("AUTH_BLACKLIST_SAFETY_MARGIN", DefaultBlacklistSafetyMargin),
		VerificationTokenTTL:     envDuration("AUTH_VERIFICATION_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:            envDuration("AUTH_RESET_TOKEN_TTL", time.Hour),
		RequireEmailVerification: envBool("AUTH_REQUIRE_EMAIL_VERIFICATION", false),
	}

	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		for _, a := range strings.Split(aud, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.Audience = append(cfg.Audience, a)
			}
		}
	}

	return cfg
}

// Validate fails fast on configuration the core cannot run with. Meant to be
// called at process start.
func (c *EnvConfig) Validate() error {
	if len(c.SigningKey) < MinSigningKeyLength {
		return goerrors.New(
			"AUTH_SIGNING_KEY must be set to a secret of at least 32 bytes",
			goerrors.CategoryBadInput,
		)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return goerrors.New("token TTLs must be positive", goerrors.CategoryBadInput)
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return goerrors.New("refresh token TTL must not be shorter than access token TTL", goerrors.CategoryBadInput)
	}
	return nil
}

func (c *EnvConfig) GetSigningKey() string                    { return c.SigningKey }
func (c *EnvConfig) GetIssuer() string                        { return c.Issuer }
func (c *EnvConfig) GetAudience() []string                    { return c.Audience }
func (c *EnvConfig) GetContextKey() string                    { return c.ContextKey }
func (c *EnvConfig) GetAuthScheme() string                    { return c.AuthScheme }
func (c *EnvConfig) GetTokenLookup() string                   { return c.TokenLookup }
func (c *EnvConfig) GetAccessTokenTTL() time.Duration         { return c.AccessTokenTTL }
func (c *EnvConfig) GetRefreshTokenTTL() time.Duration        { return c.RefreshTokenTTL }
func (c *EnvConfig) GetBlacklistCapacity() int                { return c.BlacklistCapacity }
func (c *EnvConfig) GetBlacklistSafetyMargin() time.Duration  { return c.BlacklistSafetyMargin }
func (c *EnvConfig) GetVerificationTokenTTL() time.Duration   { return c.VerificationTokenTTL }
func (c *EnvConfig) GetResetTokenTTL() time.Duration          { return c.ResetTokenTTL }
func (c *EnvConfig) GetRequireEmailVerification() bool        { return c.RequireEmailVerification }

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

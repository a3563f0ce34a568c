package jwtware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	auth "github.com/medassist/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func claimsFor(subject string, kind auth.TokenKind) *auth.TokenClaims {
	return &auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Kind:             kind,
		Version:          auth.ClaimsVersion,
	}
}

func gateConfig(codec auth.TokenCodec, principals auth.PrincipalSource, revocations auth.RevocationStore) Config {
	if revocations == nil {
		revocations = auth.NewBlacklist(time.Hour, time.Minute, 16)
	}
	return GetDefaultConfig(Config{
		Codec:       codec,
		Revocations: revocations,
		Principals:  principals,
	})
}

// bearerContext is a request carrying the token in the Authorization header,
// or no credential at all when token is empty.
func bearerContext(token string) *MockContext {
	mc := &MockContext{}
	value := ""
	if token != "" {
		value = "Bearer " + token
	}
	mc.On("GetString", router.HeaderAuthorization, "").Return(value)
	return mc
}

func TestParseSchemeCredential(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		scheme  string
		want    string
		wantErr bool
	}{
		{"plain bearer", "Bearer abc.def.ghi", "Bearer", "abc.def.ghi", false},
		{"scheme is case insensitive", "bearer abc.def.ghi", "Bearer", "abc.def.ghi", false},
		{"wrong scheme", "Basic abc.def.ghi", "Bearer", "", true},
		{"scheme without credential", "Bearer", "Bearer", "", true},
		{"scheme with only whitespace", "Bearer   ", "Bearer", "", true},
		{"empty value", "", "Bearer", "", true},
		{"empty scheme", "Bearer abc", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSchemeCredential(tc.value, tc.scheme)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrJWTMissingOrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetExtractorsParsesLookupList(t *testing.T) {
	extractors := GetExtractors("header:Authorization, cookie:jwt, query:auth_token, param:token")
	assert.Len(t, extractors, 4)

	// unknown sources are dropped rather than erroring
	extractors = GetExtractors("header:Authorization,body:token")
	assert.Len(t, extractors, 1)
}

func TestExtractRawTokenFromHeader(t *testing.T) {
	mc := bearerContext("abc.def.ghi")

	raw, err := ExtractRawTokenFromContext(mc, GetExtractors("header:"+router.HeaderAuthorization))
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", raw)
}

func TestEvaluateNoToken(t *testing.T) {
	codec := &stubCodec{}
	cfg := gateConfig(codec, &stubPrincipals{}, nil)

	outcome, principal := cfg.evaluate(bearerContext(""))

	assert.Equal(t, OutcomeNoToken, outcome)
	assert.Nil(t, principal)
	assert.Zero(t, codec.decoded)
}

func TestEvaluateRevokedBeforeDecode(t *testing.T) {
	codec := &stubCodec{claims: claimsFor("drsmith", auth.KindAccess)}
	revocations := auth.NewBlacklist(time.Hour, time.Minute, 16)
	revocations.Revoke("abc.def.ghi")

	cfg := gateConfig(codec, &stubPrincipals{}, revocations)

	outcome, principal := cfg.evaluate(bearerContext("abc.def.ghi"))

	assert.Equal(t, OutcomeRevoked, outcome)
	assert.Nil(t, principal)
	// a revoked token must die before its signature is even looked at
	assert.Zero(t, codec.decoded)
}

func TestEvaluateExpired(t *testing.T) {
	codec := &stubCodec{err: auth.ErrTokenExpired}
	cfg := gateConfig(codec, &stubPrincipals{}, nil)

	outcome, _ := cfg.evaluate(bearerContext("abc.def.ghi"))

	assert.Equal(t, OutcomeExpired, outcome)
	assert.Equal(t, 1, codec.decoded)
}

func TestEvaluateMalformed(t *testing.T) {
	codec := &stubCodec{err: auth.ErrTokenMalformed}
	cfg := gateConfig(codec, &stubPrincipals{}, nil)

	outcome, _ := cfg.evaluate(bearerContext("garbage"))

	assert.Equal(t, OutcomeMalformed, outcome)
}

func TestEvaluateWrongKind(t *testing.T) {
	codec := &stubCodec{claims: claimsFor("drsmith", auth.KindRefresh)}
	cfg := gateConfig(codec, &stubPrincipals{}, nil)

	outcome, _ := cfg.evaluate(bearerContext("abc.def.ghi"))

	assert.Equal(t, OutcomeWrongKind, outcome)
}

func TestEvaluateUnknownSubject(t *testing.T) {
	codec := &stubCodec{claims: claimsFor("ghost", auth.KindAccess)}
	cfg := gateConfig(codec, &stubPrincipals{err: auth.ErrIdentityNotFound}, nil)

	mc := bearerContext("abc.def.ghi")
	mc.On("Context").Return(context.Background())

	outcome, principal := cfg.evaluate(mc)

	assert.Equal(t, OutcomeUnknownSubject, outcome)
	assert.Nil(t, principal)
}

func TestEvaluateAuthenticated(t *testing.T) {
	codec := &stubCodec{claims: claimsFor("drsmith", auth.KindAccess)}
	principals := &stubPrincipals{principal: &auth.Principal{Username: "drsmith"}}
	cfg := gateConfig(codec, principals, nil)

	mc := bearerContext("abc.def.ghi")
	mc.On("Context").Return(context.Background())

	outcome, principal := cfg.evaluate(mc)

	assert.Equal(t, OutcomeAuthenticated, outcome)
	require.NotNil(t, principal)
	assert.Equal(t, "drsmith", principal.Username)
}

func TestGateAttachesPrincipalAndContinues(t *testing.T) {
	codec := &stubCodec{claims: claimsFor("drsmith", auth.KindAccess)}
	principals := &stubPrincipals{principal: &auth.Principal{Username: "drsmith"}}

	var observed Outcome
	mw := New(Config{
		Codec:       codec,
		Revocations: auth.NewBlacklist(time.Hour, time.Minute, 16),
		Principals:  principals,
		OutcomeListener: func(ctx router.Context, outcome Outcome) {
			observed = outcome
		},
	})

	mc := bearerContext("abc.def.ghi")
	mc.On("Context").Return(context.Background())
	mc.On("Locals", "principal", principals.principal).Return(nil)

	handler := mw(func(ctx router.Context) error { return nil })
	require.NoError(t, handler(mc))

	assert.True(t, mc.NextCalled)
	assert.Equal(t, OutcomeAuthenticated, observed)
	mc.AssertCalled(t, "Locals", "principal", principals.principal)
}

func TestGateNeverRejects(t *testing.T) {
	codec := &stubCodec{err: auth.ErrTokenMalformed}
	mw := New(Config{
		Codec:       codec,
		Revocations: auth.NewBlacklist(time.Hour, time.Minute, 16),
		Principals:  &stubPrincipals{},
	})

	mc := bearerContext("garbage")

	handler := mw(func(ctx router.Context) error { return nil })
	require.NoError(t, handler(mc))

	// the request continues anonymously, without a principal
	assert.True(t, mc.NextCalled)
	mc.AssertNotCalled(t, "Locals", "principal", mock.Anything)
}

func TestGateFilterSkipsEvaluation(t *testing.T) {
	codec := &stubCodec{}
	mw := New(Config{
		Filter:      func(ctx router.Context) bool { return true },
		Codec:       codec,
		Revocations: auth.NewBlacklist(time.Hour, time.Minute, 16),
		Principals:  &stubPrincipals{},
	})

	mc := &MockContext{}

	handler := mw(func(ctx router.Context) error { return nil })
	require.NoError(t, handler(mc))

	assert.True(t, mc.NextCalled)
	assert.Zero(t, codec.decoded)
}

func TestGetDefaultConfigRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() {
		GetDefaultConfig(Config{})
	})
	assert.Panics(t, func() {
		GetDefaultConfig(Config{Codec: &stubCodec{}})
	})
	assert.Panics(t, func() {
		GetDefaultConfig(Config{
			Codec:       &stubCodec{},
			Revocations: auth.NewBlacklist(time.Hour, time.Minute, 16),
		})
	})
}

func TestGetDefaultConfigDefaults(t *testing.T) {
	cfg := gateConfig(&stubCodec{}, &stubPrincipals{}, nil)

	assert.Equal(t, "principal", cfg.ContextKey)
	assert.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.NotNil(t, cfg.Logger)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "no_token", OutcomeNoToken.String())
	assert.Equal(t, "revoked", OutcomeRevoked.String())
	assert.Equal(t, "expired", OutcomeExpired.String())
	assert.Equal(t, "authenticated", OutcomeAuthenticated.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}

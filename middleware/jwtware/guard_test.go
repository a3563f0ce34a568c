package jwtware

import (
	"testing"

	"github.com/goliatone/go-router"
	auth "github.com/medassist/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func providerPrincipal() *auth.Principal {
	return &auth.Principal{
		Username:    "drsmith",
		Roles:       []string{auth.RoleNameUser, auth.RoleNameHealthcareProvider},
		Permissions: []string{"medicine:read", "patient:read"},
	}
}

// authenticatedContext is a request the gate already attached a principal to.
func authenticatedContext(p *auth.Principal) *MockContext {
	mc := &MockContext{}
	mc.On("Locals", "principal").Return(p)
	return mc
}

func anonymousContext() *MockContext {
	mc := &MockContext{}
	mc.On("Locals", "principal").Return(nil)
	mc.On("JSON", mock.Anything, mock.Anything).Return(nil)
	return mc
}

func TestPrincipalFromContext(t *testing.T) {
	principal := providerPrincipal()

	mc := authenticatedContext(principal)
	assert.Equal(t, principal, PrincipalFromContext(mc, "principal"))

	// empty key falls back to the default
	mc = authenticatedContext(principal)
	assert.Equal(t, principal, PrincipalFromContext(mc, ""))

	mc = &MockContext{}
	mc.On("Locals", "principal").Return(nil)
	assert.Nil(t, PrincipalFromContext(mc, "principal"))
}

func TestRequireAuthenticated(t *testing.T) {
	mw := RequireAuthenticated("principal")
	handler := mw(func(ctx router.Context) error { return nil })

	mc := authenticatedContext(providerPrincipal())
	require.NoError(t, handler(mc))
	assert.True(t, mc.NextCalled)

	mc = anonymousContext()
	require.NoError(t, handler(mc))
	assert.False(t, mc.NextCalled)
	mc.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole("principal", auth.RoleNameHealthcareProvider)
	handler := mw(func(ctx router.Context) error { return nil })

	mc := authenticatedContext(providerPrincipal())
	require.NoError(t, handler(mc))
	assert.True(t, mc.NextCalled)

	mc = authenticatedContext(providerPrincipal())
	mc.On("JSON", mock.Anything, mock.Anything).Return(nil)
	handler = RequireRole("principal", auth.RoleNameAdmin)(func(ctx router.Context) error { return nil })
	require.NoError(t, handler(mc))
	assert.False(t, mc.NextCalled)
	mc.AssertCalled(t, "JSON", router.StatusForbidden, mock.Anything)

	mc = anonymousContext()
	require.NoError(t, handler(mc))
	mc.AssertCalled(t, "JSON", router.StatusUnauthorized, mock.Anything)
}

func TestRequirePermission(t *testing.T) {
	handler := RequirePermission("principal", "patient:read")(func(ctx router.Context) error { return nil })

	mc := authenticatedContext(providerPrincipal())
	require.NoError(t, handler(mc))
	assert.True(t, mc.NextCalled)

	mc = authenticatedContext(providerPrincipal())
	mc.On("JSON", mock.Anything, mock.Anything).Return(nil)
	handler = RequirePermission("principal", "patient:delete")(func(ctx router.Context) error { return nil })
	require.NoError(t, handler(mc))
	assert.False(t, mc.NextCalled)
	mc.AssertCalled(t, "JSON", router.StatusForbidden, mock.Anything)
}

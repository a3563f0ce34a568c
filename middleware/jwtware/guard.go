package jwtware

import (
	"github.com/goliatone/go-router"
	auth "github.com/medassist/go-auth"
)

// PrincipalFromContext returns the principal the gate attached, or nil when
// the request is unauthenticated.
func PrincipalFromContext(ctx router.Context, contextKey string) *auth.Principal {
	if contextKey == "" {
		contextKey = "principal"
	}
	principal, _ := ctx.Locals(contextKey).(*auth.Principal)
	return principal
}

// RequireAuthenticated rejects unauthenticated requests with a uniform 401.
// The response never distinguishes a missing token from a revoked, expired,
// or malformed one.
func RequireAuthenticated(contextKey string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if PrincipalFromContext(ctx, contextKey) == nil {
				return unauthorized(ctx)
			}
			return ctx.Next()
		}
	}
}

// RequireRole rejects requests whose principal lacks the named role.
func RequireRole(contextKey, role string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal := PrincipalFromContext(ctx, contextKey)
			if principal == nil {
				return unauthorized(ctx)
			}
			if !principal.HasRole(role) {
				return forbidden(ctx)
			}
			return ctx.Next()
		}
	}
}

// RequirePermission rejects requests whose principal lacks the named
// permission, e.g. "medicine:read".
func RequirePermission(contextKey, permission string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal := PrincipalFromContext(ctx, contextKey)
			if principal == nil {
				return unauthorized(ctx)
			}
			if !principal.HasPermission(permission) {
				return forbidden(ctx)
			}
			return ctx.Next()
		}
	}
}

func unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]string{
		"error": "authentication required",
	})
}

func forbidden(ctx router.Context) error {
	return ctx.JSON(router.StatusForbidden, map[string]string{
		"error": "insufficient permissions",
	})
}

package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Principal is the resolved identity and authority attached to an
// authenticated request. It is built fresh per request and never cached
// across requests.
type Principal struct {
	ID                 uuid.UUID
	Username           string
	Email              string
	Roles              []string
	Permissions        []string
	Enabled            bool
	Verified           bool
	HealthcareProvider bool
	ProviderVerified   bool
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(name string) bool {
	for _, role := range p.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal carries the named permission.
func (p *Principal) HasPermission(name string) bool {
	for _, permission := range p.Permissions {
		if permission == name {
			return true
		}
	}
	return false
}

// PrincipalUsers is the slice of the user store the resolver needs.
type PrincipalUsers interface {
	GetByIdentifierWithAuthority(ctx context.Context, identifier string) (*User, error)
}

// PrincipalResolver builds principals from the external user store,
// flattening each assigned role's permission set into the principal.
type PrincipalResolver struct {
	users           PrincipalUsers
	requireVerified bool
	logger          Logger
}

var _ PrincipalSource = (*PrincipalResolver)(nil)

// NewPrincipalResolver creates a resolver over the given user store.
func NewPrincipalResolver(users PrincipalUsers) *PrincipalResolver {
	return &PrincipalResolver{
		users:  users,
		logger: defLogger{},
	}
}

func (r *PrincipalResolver) WithLogger(logger Logger) *PrincipalResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithRequireVerified makes resolution fail for accounts that have not
// completed email verification. Off by default, matching deployments that
// auto-verify on registration.
func (r *PrincipalResolver) WithRequireVerified(require bool) *PrincipalResolver {
	r.requireVerified = require
	return r
}

// Resolve looks up the username and builds its principal. A missing account
// fails with ErrIdentityNotFound; an account that exists but is disabled or
// unverified fails distinctly, so callers can produce different outcomes.
func (r *PrincipalResolver) Resolve(ctx context.Context, username string) (*Principal, error) {
	user, err := r.users.GetByIdentifierWithAuthority(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for principal resolution")
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if !user.Enabled {
		return nil, ErrAccountDisabled
	}

	if r.requireVerified && !user.Verified {
		return nil, ErrAccountUnverified
	}

	return PrincipalFromUser(user), nil
}

// PrincipalFromUser flattens the user's role and permission assignments into
// a principal. Role and permission names form the authorization vocabulary
// used by downstream access checks.
func PrincipalFromUser(user *User) *Principal {
	principal := &Principal{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		Enabled:            user.Enabled,
		Verified:           user.Verified,
		HealthcareProvider: user.HealthcareProvider,
		ProviderVerified:   user.ProviderVerified,
	}

	seen := map[string]bool{}
	for _, role := range user.Roles {
		if role == nil {
			continue
		}
		principal.Roles = append(principal.Roles, role.Name)
		for _, permission := range role.Permissions {
			if permission == nil || seen[permission.Name] {
				continue
			}
			seen[permission.Name] = true
			principal.Permissions = append(principal.Permissions, permission.Name)
		}
	}

	return principal
}

package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterModels registers the m2m join models bun needs to resolve the
// Roles and Permissions relations. Call once per *bun.DB before querying.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*UserRole)(nil), (*RolePermission)(nil))
}

// Role names known to the system.
const (
	RoleNameUser                       = "USER"
	RoleNameHealthcareProvider         = "HEALTHCARE_PROVIDER"
	RoleNameVerifiedHealthcareProvider = "VERIFIED_HEALTHCARE_PROVIDER"
	RoleNameAdmin                      = "ADMIN"
)

// User is the user model
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username            string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash        string     `bun:"password_hash,notnull" json:"-"`
	FirstName           string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName            string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone               string     `bun:"phone_number" json:"phone_number,omitempty"`
	Enabled             bool       `bun:"is_enabled" json:"is_enabled,omitempty"`
	Verified            bool       `bun:"is_verified" json:"is_verified,omitempty"`
	HealthcareProvider  bool       `bun:"is_healthcare_provider" json:"is_healthcare_provider,omitempty"`
	ProviderVerified    bool       `bun:"provider_verified" json:"provider_verified,omitempty"`
	LicenseNumber       string     `bun:"license_number,unique,nullzero" json:"license_number,omitempty"`
	MedicalSpecialty    string     `bun:"medical_specialty" json:"medical_specialty,omitempty"`
	HospitalAffiliation string     `bun:"hospital_affiliation" json:"hospital_affiliation,omitempty"`
	Roles               []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	LastLoginAt         *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins the user's name parts for display.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role != nil && role.Name == name {
			return true
		}
	}
	return false
}

// Role groups permissions under a name users can be assigned to.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string        `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string        `bun:"description" json:"description,omitempty"`
	Permissions   []*Permission `bun:"m2m:role_permissions,join:Role=Permission" json:"permissions,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Permission is a single named authority, e.g. medicine:read.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:prm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRole is the users<->roles join model.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// RolePermission is the roles<->permissions join model.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rolprm"`
	RoleID        uuid.UUID   `bun:"role_id,pk,type:uuid" json:"role_id"`
	Role          *Role       `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	PermissionID  uuid.UUID   `bun:"permission_id,pk,type:uuid" json:"permission_id"`
	Permission    *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"permission,omitempty"`
}

// TokenPurpose tags a one-time token with the flow it belongs to.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// OneTimeToken is a single-use, expiring token record backing email
// verification and password reset. At most one live record exists per
// user and purpose; issuing a new one supersedes the old.
type OneTimeToken struct {
	bun.BaseModel `bun:"table:one_time_tokens,alias:ott"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string       `bun:"token,notnull,unique" json:"token,omitempty"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User        `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time   `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the record's expiry has passed.
func (t *OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Consumed reports whether the record has already been spent. Once consumed
// it is permanently invalid for its purpose, even if looked up again.
func (t *OneTimeToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// Usable reports whether the record can still serve its purpose.
func (t *OneTimeToken) Usable(now time.Time) bool {
	return !t.Consumed() && !t.Expired(now)
}

// MarkConsumed stamps the record as spent.
func (t *OneTimeToken) MarkConsumed(now time.Time) {
	t.ConsumedAt = &now
}

// NewOneTimeToken creates an unsaved record for the user and purpose.
func NewOneTimeToken(userID uuid.UUID, purpose TokenPurpose, ttl time.Duration) *OneTimeToken {
	return &OneTimeToken{
		Token:     uuid.NewString(),
		Purpose:   purpose,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}
}

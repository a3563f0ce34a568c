package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// CredentialStore is the slice of the user store the authenticator needs.
type CredentialStore interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// Auther orchestrates login, refresh, and logout over the token codec, the
// revocation store, and the external user store.
type Auther struct {
	users           CredentialStore
	codec           TokenCodec
	blacklist       RevocationStore
	accessTTL       time.Duration
	refreshTTL      time.Duration
	requireVerified bool
	logger          Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users CredentialStore, codec TokenCodec, blacklist RevocationStore, opts Config) *Auther {
	return &Auther{
		users:           users,
		codec:           codec,
		blacklist:       blacklist,
		accessTTL:       opts.GetAccessTokenTTL(),
		refreshTTL:      opts.GetRefreshTokenTTL(),
		requireVerified: opts.GetRequireEmailVerification(),
		logger:          defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Login verifies the credentials and, on success, issues one access and one
// refresh token. Credential mismatch and unknown accounts fail identically,
// never revealing which part was wrong.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			s.logger.Debug("login attempt for unknown identifier")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login user lookup failed: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Debug("login password mismatch for %s", user.Username)
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		s.logger.Warn("login blocked for disabled account %s", user.Username)
		return nil, ErrAccountDisabled
	}

	if s.requireVerified && !user.Verified {
		s.logger.Warn("login blocked for unverified account %s", user.Username)
		return nil, ErrAccountUnverified
	}

	if err := s.users.TrackSuccessfulLogin(ctx, user); err != nil {
		// bookkeeping only, the login itself stands
		s.logger.Warn("failed to track successful login for %s: %v", user.Username, err)
	}

	pair, err := s.issuePair(user.Username)
	if err != nil {
		s.logger.Error("login token issuance failed: %v", err)
		return nil, err
	}

	return pair, nil
}

// Refresh mints a new access token for a valid refresh token. The presented
// token must verify and be refresh kind; the same refresh token string is
// returned unchanged, there is no rotation.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		s.logger.Debug("refresh token failed validation: %v", err)
		return nil, err
	}

	if !claims.IsRefresh() {
		s.logger.Warn("non-refresh token presented to refresh by %s", claims.Subject())
		return nil, ErrTokenWrongKind
	}

	accessToken, err := s.codec.Issue(claims.Subject(), KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}, nil
}

// Logout revokes the presented access token. Revoking twice is harmless; the
// revocation is recorded before Logout returns.
func (s *Auther) Logout(token string) {
	if token == "" {
		return
	}
	s.blacklist.Revoke(token)
}

func (s *Auther) issuePair(subject string) (*TokenPair, error) {
	accessToken, err := s.codec.Issue(subject, KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.Issue(subject, KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}, nil
}

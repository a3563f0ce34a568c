package auth_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	auth "github.com/medassist/go-auth"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockCredentialStore) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockPrincipalUsers implements auth.PrincipalUsers
type MockPrincipalUsers struct {
	mock.Mock
}

func (m *MockPrincipalUsers) GetByIdentifierWithAuthority(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockMailer records dispatches so tests can assert on them.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, kind auth.MailKind, address string, payload map[string]any) error {
	args := m.Called(ctx, kind, address, payload)
	return args.Error(0)
}

// MockRepositoryManager wires the repository mocks behind a pass-through
// transaction, so command handlers run their closures directly and tests can
// count how many transactions a flow opened.
type MockRepositoryManager struct {
	users   *MockUsers
	roles   *MockRoles
	tokens  *MockOneTimeTokens
	txCalls int
}

var _ auth.RepositoryManager = (*MockRepositoryManager)(nil)

func newMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:  &MockUsers{},
		roles:  &MockRoles{},
		tokens: &MockOneTimeTokens{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	m.txCalls++
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() auth.Users { return m.users }

func (m *MockRepositoryManager) Roles() repository.Repository[*auth.Role] { return m.roles }

func (m *MockRepositoryManager) OneTimeTokens() auth.OneTimeTokens { return m.tokens }

// MockUsers implements auth.Users. Only the methods the command handlers
// touch are wired; anything else panics through the embedded nil interface.
// CreateTx and UpdateTx echo their input record when no return is stubbed.
type MockUsers struct {
	mock.Mock
	repository.Repository[*auth.User]
}

var _ auth.Users = (*MockUsers)(nil)

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if created, ok := args.Get(0).(*auth.User); ok {
		return created, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.UpdateCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if updated, ok := args.Get(0).(*auth.User); ok {
		return updated, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByIdentifierWithAuthority(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) ExistsByLicenseNumber(ctx context.Context, license string) (bool, error) {
	args := m.Called(ctx, license)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *auth.User) error {
	args := m.Called(ctx, tx, user)
	return args.Error(0)
}

func (m *MockUsers) AssignRoleTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	args := m.Called(ctx, tx, userID, roleID)
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockOneTimeTokens implements auth.OneTimeTokens the same way.
type MockOneTimeTokens struct {
	mock.Mock
	repository.Repository[*auth.OneTimeToken]
}

var _ auth.OneTimeTokens = (*MockOneTimeTokens)(nil)

func (m *MockOneTimeTokens) CreateTx(ctx context.Context, tx bun.IDB, record *auth.OneTimeToken, criteria ...repository.InsertCriteria) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, tx, record)
	if created, ok := args.Get(0).(*auth.OneTimeToken); ok {
		return created, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockOneTimeTokens) UpdateTx(ctx context.Context, tx bun.IDB, record *auth.OneTimeToken, criteria ...repository.UpdateCriteria) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, tx, record)
	if updated, ok := args.Get(0).(*auth.OneTimeToken); ok {
		return updated, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockOneTimeTokens) FindByToken(ctx context.Context, token string, purpose auth.TokenPurpose) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, token, purpose)
	record, _ := args.Get(0).(*auth.OneTimeToken)
	return record, args.Error(1)
}

func (m *MockOneTimeTokens) FindByTokenTx(ctx context.Context, tx bun.IDB, token string, purpose auth.TokenPurpose) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, tx, token, purpose)
	record, _ := args.Get(0).(*auth.OneTimeToken)
	return record, args.Error(1)
}

func (m *MockOneTimeTokens) DeleteForUser(ctx context.Context, userID uuid.UUID, purpose auth.TokenPurpose) error {
	args := m.Called(ctx, userID, purpose)
	return args.Error(0)
}

func (m *MockOneTimeTokens) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose auth.TokenPurpose) error {
	args := m.Called(ctx, tx, userID, purpose)
	return args.Error(0)
}

func (m *MockOneTimeTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	deleted, _ := args.Get(0).(int64)
	return deleted, args.Error(1)
}

// MockRoles only wires the name lookup.
type MockRoles struct {
	mock.Mock
	repository.Repository[*auth.Role]
}

func (m *MockRoles) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.Role, error) {
	args := m.Called(ctx, identifier)
	role, _ := args.Get(0).(*auth.Role)
	return role, args.Error(1)
}

func testSigningKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func testConfig() *auth.EnvConfig {
	cfg := auth.NewEnvConfig()
	cfg.SigningKey = string(testSigningKey())
	return cfg
}

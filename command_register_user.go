package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	UseHashid  bool
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates consumer accounts. Username and email must be
// free; the account gets the default USER role. Whether the account starts
// verified is a deployment policy: when email verification is not required
// the account is auto-verified, yet a verification token is still issued
// when a mailer is configured, mirroring the deployed behavior.
type RegisterUserHandler struct {
	repo            RepositoryManager
	mailer          Mailer
	verificationTTL time.Duration
	requireVerified bool
	logger          Logger
}

func NewRegisterUserHandler(repo RepositoryManager, opts Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:            repo,
		verificationTTL: opts.GetVerificationTokenTTL(),
		requireVerified: opts.GetRequireEmailVerification(),
		logger:          defLogger{},
	}
}

// WithMailer configures the optional verification mail dispatch.
func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	h.mailer = mailer
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = h.createUserTx(ctx, tx, event); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	h.sendVerification(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *RegisterUserHandler) createUserTx(ctx context.Context, tx bun.Tx, event RegisterUserMessage) (*User, error) {
	username := getUsername(event.Username, event.Email)

	if taken, err := h.repo.Users().ExistsByUsername(ctx, username); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
	} else if taken {
		return nil, AlreadyExistsError("username")
	}

	if taken, err := h.repo.Users().ExistsByEmail(ctx, event.Email); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	} else if taken {
		return nil, AlreadyExistsError("email")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	user := &User{
		Username:     username,
		Email:        event.Email,
		PasswordHash: hash,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Phone:        event.Phone,
		Enabled:      true,
		Verified:     !h.requireVerified,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}
	}

	if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	role, err := h.repo.Roles().GetByIdentifier(ctx, RoleNameUser)
	if err != nil {
		return nil, NotFoundError("role " + RoleNameUser)
	}

	if err := h.repo.Users().AssignRoleTx(ctx, tx, user.ID, role.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign default role")
	}

	return user, nil
}

// sendVerification issues a one-time token and dispatches the verification
// mail. Skipped entirely when no mailer is configured; a dispatch failure is
// logged and never fails the registration.
func (h *RegisterUserHandler) sendVerification(ctx context.Context, user *User) {
	if h.mailer == nil || user == nil {
		return
	}

	record, err := issueOneTimeToken(ctx, h.repo, user.ID, PurposeEmailVerification, h.verificationTTL)
	if err != nil {
		h.logger.Warn("failed to issue verification token for %s: %v", user.Username, err)
		return
	}

	go func() {
		if err := h.mailer.Send(context.Background(), MailVerification, user.Email, map[string]any{
			"username": user.Username,
			"token":    record.Token,
		}); err != nil {
			h.logger.Warn("verification mail dispatch failed: %v", err)
		}
	}()
}

type RegisterProviderMessage struct {
	RegisterUserMessage
	LicenseNumber       string `json:"license_number"`
	MedicalSpecialty    string `json:"medical_specialty"`
	HospitalAffiliation string `json:"hospital_affiliation"`
}

func (e RegisterProviderMessage) Type() string { return "user.register_provider" }

// RegisterProviderHandler creates healthcare provider accounts: a regular
// registration plus license details and the HEALTHCARE_PROVIDER role.
// Provider verification itself is a separate, manual step.
type RegisterProviderHandler struct {
	users *RegisterUserHandler
	repo  RepositoryManager
}

func NewRegisterProviderHandler(repo RepositoryManager, opts Config) *RegisterProviderHandler {
	return &RegisterProviderHandler{
		users: NewRegisterUserHandler(repo, opts),
		repo:  repo,
	}
}

func (h *RegisterProviderHandler) WithMailer(mailer Mailer) *RegisterProviderHandler {
	h.users.WithMailer(mailer)
	return h
}

func (h *RegisterProviderHandler) WithLogger(logger Logger) *RegisterProviderHandler {
	h.users.WithLogger(logger)
	return h
}

func (h *RegisterProviderHandler) Execute(ctx context.Context, event RegisterProviderMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during provider registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterProviderHandler) execute(ctx context.Context, event RegisterProviderMessage) error {
	if taken, err := h.repo.Users().ExistsByLicenseNumber(ctx, event.LicenseNumber); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check license availability")
	} else if taken {
		return AlreadyExistsError("license number")
	}

	var user *User
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// The account, its license details, and both role grants commit
	// together; a failure past user creation must not leave a plain
	// consumer account behind.
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = h.users.createUserTx(ctx, tx, event.RegisterUserMessage); err != nil {
			return err
		}

		user.HealthcareProvider = true
		user.ProviderVerified = false
		user.LicenseNumber = event.LicenseNumber
		user.MedicalSpecialty = event.MedicalSpecialty
		user.HospitalAffiliation = event.HospitalAffiliation

		if user, err = h.repo.Users().UpdateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store provider details")
		}

		role, err := h.repo.Roles().GetByIdentifier(ctx, RoleNameHealthcareProvider)
		if err != nil {
			return NotFoundError("role " + RoleNameHealthcareProvider)
		}

		return h.repo.Users().AssignRoleTx(ctx, tx, user.ID, role.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "provider registration transaction failed")
	}

	h.users.sendVerification(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

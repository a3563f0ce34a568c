package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyProviderMessage struct {
	UserID   uuid.UUID `json:"user_id"`
	Approved bool      `json:"approved"`
}

func (e VerifyProviderMessage) Type() string { return "account.verify_provider" }

// VerifyProviderHandler records the outcome of a manual healthcare license
// review. Approval grants the VERIFIED_HEALTHCARE_PROVIDER role; rejection
// clears the pending flag and leaves the account a regular provider.
type VerifyProviderHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

func NewVerifyProviderHandler(repo RepositoryManager) *VerifyProviderHandler {
	return &VerifyProviderHandler{
		repo:   repo,
		mailer: normalizeMailer(nil),
		logger: defLogger{},
	}
}

func (h *VerifyProviderHandler) WithMailer(mailer Mailer) *VerifyProviderHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *VerifyProviderHandler) WithLogger(logger Logger) *VerifyProviderHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyProviderHandler) Execute(ctx context.Context, event VerifyProviderMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during provider verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyProviderHandler) execute(ctx context.Context, event VerifyProviderMessage) error {
	user, err := h.repo.Users().GetByID(ctx, event.UserID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return NotFoundError("user")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.HealthcareProvider {
		return BusinessRuleError("user is not a healthcare provider", "NOT_HEALTHCARE_PROVIDER")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.ProviderVerified = event.Approved
		if _, err := h.repo.Users().UpdateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification outcome")
		}

		if !event.Approved {
			return nil
		}

		role, err := h.repo.Roles().GetByIdentifier(ctx, RoleNameVerifiedHealthcareProvider)
		if err != nil {
			return NotFoundError("role " + RoleNameVerifiedHealthcareProvider)
		}

		return h.repo.Users().AssignRoleTx(ctx, tx, user.ID, role.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "provider verification transaction failed")
	}

	go func() {
		if err := h.mailer.Send(context.Background(), MailProviderVerification, user.Email, map[string]any{
			"username": user.Username,
			"approved": event.Approved,
		}); err != nil {
			h.logger.Warn("provider verification mail dispatch failed: %v", err)
		}
	}()

	return nil
}

package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "password_reset.finalize" }

// FinalizePasswordResetHandler spends a reset token and stores the new
// password hash. The token is single use: consumption and the password
// update commit together, and a consumed or expired token is rejected even
// when the record still exists.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.OneTimeTokens().FindByTokenTx(ctx, tx, event.Token, PurposePasswordReset)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return invalidResetTokenError()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		now := h.now()
		if record.Consumed() {
			h.logger.Warn("reused password reset token for user %s", record.UserID)
			return BusinessRuleError("token has already been used", "TOKEN_ALREADY_USED")
		}
		if record.Expired(now) {
			return invalidResetTokenError()
		}

		record.MarkConsumed(now)
		if _, err := h.repo.OneTimeTokens().UpdateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
		}

		return h.repo.Users().ResetPasswordTx(ctx, tx, record.UserID, hash)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	return nil
}

func invalidResetTokenError() *goerrors.Error {
	return goerrors.New("invalid or expired reset token", goerrors.CategoryValidation).
		WithTextCode("INVALID_RESET_TOKEN").
		WithCode(goerrors.CodeBadRequest)
}

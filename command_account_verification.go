package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token string `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

// VerifyEmailHandler spends an email verification token and flips the
// account to verified. Consumption and the flag update commit together.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.OneTimeTokens().FindByTokenTx(ctx, tx, event.Token, PurposeEmailVerification)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return invalidVerificationTokenError()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
		}

		now := h.now()
		if !record.Usable(now) {
			return invalidVerificationTokenError()
		}

		record.MarkConsumed(now)
		if _, err := h.repo.OneTimeTokens().UpdateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		_, err = tx.NewUpdate().
			Model((*User)(nil)).
			Set("is_verified = ?", true).
			Set("updated_at = current_timestamp").
			Where("id = ?", record.UserID).
			Exec(ctx)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email verification transaction failed")
	}

	return nil
}

type ResendVerificationMessage struct {
	Email string `json:"email"`
}

func (e ResendVerificationMessage) Type() string { return "account.resend_verification" }

// ResendVerificationHandler reissues the verification token for an
// unverified account, superseding any earlier one, and resends the mail.
type ResendVerificationHandler struct {
	repo            RepositoryManager
	mailer          Mailer
	verificationTTL time.Duration
	logger          Logger
}

func NewResendVerificationHandler(repo RepositoryManager, opts Config) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:            repo,
		mailer:          normalizeMailer(nil),
		verificationTTL: opts.GetVerificationTokenTTL(),
		logger:          defLogger{},
	}
}

func (h *ResendVerificationHandler) WithMailer(mailer Mailer) *ResendVerificationHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return NotFoundError("user")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if user.Verified {
		return BusinessRuleError("email is already verified", "EMAIL_ALREADY_VERIFIED")
	}

	record, err := issueOneTimeToken(ctx, h.repo, user.ID, PurposeEmailVerification, h.verificationTTL)
	if err != nil {
		return err
	}

	go func() {
		if err := h.mailer.Send(context.Background(), MailVerification, user.Email, map[string]any{
			"username": user.Username,
			"token":    record.Token,
		}); err != nil {
			h.logger.Warn("verification mail dispatch failed: %v", err)
		}
	}()

	return nil
}

func invalidVerificationTokenError() *goerrors.Error {
	return goerrors.New("invalid or expired verification token", goerrors.CategoryValidation).
		WithTextCode("INVALID_VERIFICATION_TOKEN").
		WithCode(goerrors.CodeBadRequest)
}

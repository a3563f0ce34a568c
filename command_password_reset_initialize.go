package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(record *OneTimeToken)
}

func (e InitializePasswordResetMessage) Type() string { return "password_reset.initialize" }

// InitializePasswordResetHandler starts the reset flow for a verified
// account: any earlier reset token for the user is superseded, a fresh
// single-use token is stored, and the reset mail goes out.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	resetTTL time.Duration
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, opts Config) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   normalizeMailer(nil),
		resetTTL: opts.GetResetTokenTTL(),
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return NotFoundError("user")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.Verified {
		return NotFoundError("user")
	}

	record, err := issueOneTimeToken(ctx, h.repo, user.ID, PurposePasswordReset, h.resetTTL)
	if err != nil {
		return err
	}

	go func() {
		if err := h.mailer.Send(context.Background(), MailPasswordReset, user.Email, map[string]any{
			"username": user.Username,
			"token":    record.Token,
		}); err != nil {
			h.logger.Warn("password reset mail dispatch failed: %v", err)
		}
	}()

	if event.OnResponse != nil {
		event.OnResponse(record)
	}

	return nil
}

// issueOneTimeToken supersedes any live token for the user and purpose and
// stores a fresh one, atomically.
func issueOneTimeToken(ctx context.Context, repo RepositoryManager, userID uuid.UUID, purpose TokenPurpose, ttl time.Duration) (*OneTimeToken, error) {
	record := NewOneTimeToken(userID, purpose, ttl)

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := repo.OneTimeTokens().DeleteForUserTx(ctx, tx, userID, purpose); err != nil {
			return err
		}

		var err error
		record, err = repo.OneTimeTokens().CreateTx(ctx, tx, record)
		return err
	})

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue one-time token")
	}

	return record, nil
}

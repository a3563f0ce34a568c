package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OneTimeTokens stores verification and password reset token records.
type OneTimeTokens interface {
	repository.Repository[*OneTimeToken]

	FindByToken(ctx context.Context, token string, purpose TokenPurpose) (*OneTimeToken, error)
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string, purpose TokenPurpose) (*OneTimeToken, error)

	// DeleteForUser removes any live record for the user and purpose, so at
	// most one token per purpose per user is ever valid.
	DeleteForUser(ctx context.Context, userID uuid.UUID, purpose TokenPurpose) error
	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose TokenPurpose) error

	// DeleteExpired garbage-collects records past their expiry. Meant to be
	// called from a periodic sweep owned by the host application.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type oneTimeTokens struct {
	repository.Repository[*OneTimeToken]
	db *bun.DB
}

var _ OneTimeTokens = (*oneTimeTokens)(nil)

func NewOneTimeTokensRepository(db *bun.DB) OneTimeTokens {
	repo := repository.NewRepository[*OneTimeToken](db, repository.ModelHandlers[*OneTimeToken]{
		NewRecord: func() *OneTimeToken { return &OneTimeToken{} },
		GetID: func(record *OneTimeToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *OneTimeToken, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &oneTimeTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *oneTimeTokens) FindByToken(ctx context.Context, token string, purpose TokenPurpose) (*OneTimeToken, error) {
	return r.FindByTokenTx(ctx, r.db, token, purpose)
}

func (r *oneTimeTokens) FindByTokenTx(ctx context.Context, tx bun.IDB, token string, purpose TokenPurpose) (*OneTimeToken, error) {
	record := &OneTimeToken{}

	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.purpose = ?", purpose).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *oneTimeTokens) DeleteForUser(ctx context.Context, userID uuid.UUID, purpose TokenPurpose) error {
	return r.DeleteForUserTx(ctx, r.db, userID, purpose)
}

func (r *oneTimeTokens) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose TokenPurpose) error {
	_, err := tx.NewDelete().
		Model((*OneTimeToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.purpose = ?", purpose).
		Exec(ctx)

	return err
}

func (r *oneTimeTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*OneTimeToken)(nil)).
		Where("?TableAlias.expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, nil
}

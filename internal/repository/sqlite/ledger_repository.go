package sqlite

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
)

type ledgerRepository struct {
	db sqlx.ExtContext
}

// NewLedgerRepository creates a new LedgerRepository implementation
func NewLedgerRepository(db sqlx.ExtContext) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) upsert(ctx context.Context, userID int64, points, credits, sessions int) error {
	log := logger.FromContext(ctx).WithPrefix("ledger_repo")

	now := time.Now().UTC()
	query, args, err := sqlBuilder.Insert("user_balances").
		Columns("user_id", "points", "credits", "sessions_completed", "updated_at").
		Values(userID, points, credits, sessions, now).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			points = points + excluded.points,
			credits = credits + excluded.credits,
			sessions_completed = sessions_completed + excluded.sessions_completed,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to update balance for user %d: %v", userID, err)
		return err
	}
	log.Debug("balance updated: user=%d points=%+d credits=%+d sessions=%+d", userID, points, credits, sessions)
	return nil
}

func (r *ledgerRepository) AwardPoints(ctx context.Context, userID int64, points int) error {
	return r.upsert(ctx, userID, points, 0, 0)
}

func (r *ledgerRepository) AwardCredits(ctx context.Context, userID int64, amount int) error {
	return r.upsert(ctx, userID, 0, amount, 0)
}

func (r *ledgerRepository) CompleteSessionBonus(ctx context.Context, userID int64, credits int) error {
	return r.upsert(ctx, userID, 0, credits, 1)
}

func (r *ledgerRepository) Get(ctx context.Context, userID int64) (*models.UserBalance, error) {
	var b models.UserBalance
	found, err := getOne(ctx, r.db, &b, sqlBuilder.Select("user_id", "points", "credits", "sessions_completed", "updated_at").
		From("user_balances").Where(squirrel.Eq{"user_id": userID}))
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

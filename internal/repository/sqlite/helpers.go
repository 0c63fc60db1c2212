package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type store struct {
	db *sqlx.DB
}

// NewStore creates a repository.Store over db.
func NewStore(db *sqlx.DB) repository.Store {
	return &store{db: db}
}

func bind(q sqlx.ExtContext) repository.Repos {
	return repository.Repos{
		Paragraphs: &paragraphRepository{db: q},
		Sessions:   &sessionRepository{db: q},
		Runs:       &runRepository{db: q},
		Reviews:    &reviewRepository{db: q},
		Ledger:     &ledgerRepository{db: q},
	}
}

func (s *store) Repos() repository.Repos {
	return bind(s.db)
}

func (s *store) WithTx(ctx context.Context, fn func(repository.Repos) error) error {
	log := logger.FromContext(ctx).WithPrefix("repo")
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(bind(tx)); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction: %v", err)
		return err
	}
	log.Debug("transaction committed")
	return nil
}

// getOne runs a single-row query, mapping sql.ErrNoRows to (false, nil).
func getOne(ctx context.Context, q sqlx.QueryerContext, dest any, b squirrel.Sqlizer) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, err
	}
	err = sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func execInsert(ctx context.Context, e sqlx.ExecerContext, b squirrel.InsertBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// execUpdate runs an update and reports sql.ErrNoRows when nothing matched.
func execUpdate(ctx context.Context, e sqlx.ExecerContext, b squirrel.UpdateBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

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

type runRepository struct {
	db sqlx.ExtContext
}

// NewRunRepository creates a new RunRepository implementation
func NewRunRepository(db sqlx.ExtContext) repository.RunRepository {
	return &runRepository{db: db}
}

var runColumns = []string{
	"id", "user_id", "status", "current_difficulty", "initial_difficulty", "language",
	"paragraphs_completed", "total_points", "total_credits", "average_accuracy", "started_at", "ended_at",
}

var unitColumns = []string{
	"id", "run_id", "order_index", "difficulty", "status", "session_id", "paragraph_id",
	"accuracy", "time_spent_seconds", "points", "credits", "error_summary", "vocab_hint",
	"created_at", "completed_at",
}

func (r *runRepository) Get(ctx context.Context, id int64) (*models.RandomRun, error) {
	log := logger.FromContext(ctx).WithPrefix("run_repo")

	var run models.RandomRun
	found, err := getOne(ctx, r.db, &run, sqlBuilder.Select(runColumns...).From("random_runs").Where(squirrel.Eq{"id": id}))
	if err != nil {
		log.Error("failed to get run %d: %v", id, err)
		return nil, err
	}
	if !found {
		log.Debug("run not found: id=%d", id)
		return nil, nil
	}

	if err := selectAll(ctx, r.db, &run.Units, sqlBuilder.Select(unitColumns...).From("run_units").
		Where(squirrel.Eq{"run_id": id}).
		OrderBy("order_index ASC")); err != nil {
		log.Error("failed to load units for run %d: %v", id, err)
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) ListByUser(ctx context.Context, userID int64) ([]models.RandomRun, error) {
	var out []models.RandomRun
	if err := selectAll(ctx, r.db, &out, sqlBuilder.Select(runColumns...).From("random_runs").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("started_at DESC", "id DESC")); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepository) Insert(ctx context.Context, run models.RandomRun) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("run_repo")

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Language == "" {
		run.Language = models.DefaultLanguage
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("random_runs").
		Columns(runColumns[1:]...).
		Values(run.UserID, run.Status, run.CurrentDifficulty, run.InitialDifficulty, run.Language,
			run.ParagraphsCompleted, run.TotalPoints, run.TotalCredits, run.AverageAccuracy, run.StartedAt, run.EndedAt))
	if err != nil {
		log.Error("failed to insert run for user %d: %v", run.UserID, err)
		return 0, err
	}
	log.Debug("run inserted: id=%d user=%d difficulty=%d", id, run.UserID, run.CurrentDifficulty)
	return id, nil
}

func (r *runRepository) Update(ctx context.Context, run models.RandomRun) error {
	log := logger.FromContext(ctx).WithPrefix("run_repo")

	err := execUpdate(ctx, r.db, sqlBuilder.Update("random_runs").
		Set("status", run.Status).
		Set("current_difficulty", run.CurrentDifficulty).
		Set("paragraphs_completed", run.ParagraphsCompleted).
		Set("total_points", run.TotalPoints).
		Set("total_credits", run.TotalCredits).
		Set("average_accuracy", run.AverageAccuracy).
		Set("ended_at", run.EndedAt).
		Where(squirrel.Eq{"id": run.ID}))
	if err != nil {
		log.Error("failed to update run %d: %v", run.ID, err)
	}
	return err
}

func (r *runRepository) InsertUnit(ctx context.Context, u models.RunUnit) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("run_repo")

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("run_units").
		Columns(unitColumns[1:]...).
		Values(u.RunID, u.OrderIndex, u.Difficulty, u.Status, u.SessionID, u.ParagraphID,
			u.Accuracy, u.TimeSpentSeconds, u.Points, u.Credits, u.ErrorSummary, u.VocabHint,
			u.CreatedAt, u.CompletedAt))
	if err != nil {
		log.Error("failed to insert unit %d for run %d: %v", u.OrderIndex, u.RunID, err)
		return 0, err
	}
	log.Debug("unit inserted: id=%d run=%d order=%d difficulty=%d", id, u.RunID, u.OrderIndex, u.Difficulty)
	return id, nil
}

func (r *runRepository) UpdateUnit(ctx context.Context, u models.RunUnit) error {
	log := logger.FromContext(ctx).WithPrefix("run_repo")

	err := execUpdate(ctx, r.db, sqlBuilder.Update("run_units").
		Set("status", u.Status).
		Set("accuracy", u.Accuracy).
		Set("time_spent_seconds", u.TimeSpentSeconds).
		Set("points", u.Points).
		Set("credits", u.Credits).
		Set("error_summary", u.ErrorSummary).
		Set("vocab_hint", u.VocabHint).
		Set("completed_at", u.CompletedAt).
		Where(squirrel.Eq{"id": u.ID}))
	if err != nil {
		log.Error("failed to update unit %d: %v", u.ID, err)
	}
	return err
}

func (r *runRepository) UnitBySession(ctx context.Context, sessionID int64) (*models.RunUnit, error) {
	var u models.RunUnit
	found, err := getOne(ctx, r.db, &u, sqlBuilder.Select(unitColumns...).From("run_units").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("id DESC").Limit(1))
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

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

type reviewRepository struct {
	db sqlx.ExtContext
}

// NewReviewRepository creates a new ReviewRepository implementation
func NewReviewRepository(db sqlx.ExtContext) repository.ReviewRepository {
	return &reviewRepository{db: db}
}

func cardSelect() squirrel.SelectBuilder {
	return sqlBuilder.Select(
		"c.id", "c.user_id", "c.subject_id", "COALESCE(a.original_sentence, '') AS sentence",
		"c.interval_days", "c.ease_factor", "c.repetitions", "c.next_due_at", "c.created_at", "c.updated_at",
	).From("review_cards c").LeftJoin("attempts a ON a.id = c.subject_id")
}

func (r *reviewRepository) Find(ctx context.Context, userID, subjectID int64) (*models.ReviewCard, error) {
	var c models.ReviewCard
	found, err := getOne(ctx, r.db, &c, cardSelect().Where(squirrel.Eq{"c.user_id": userID, "c.subject_id": subjectID}))
	if err != nil || !found {
		return nil, err
	}
	return &c, nil
}

func (r *reviewRepository) Insert(ctx context.Context, c models.ReviewCard) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("review_repo")

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("review_cards").
		Columns("user_id", "subject_id", "interval_days", "ease_factor", "repetitions", "next_due_at", "created_at", "updated_at").
		Values(c.UserID, c.SubjectID, c.IntervalDays, c.EaseFactor, c.Repetitions, c.NextDueAt.UTC(), c.CreatedAt, c.UpdatedAt))
	if err != nil {
		log.Error("failed to insert review card user=%d subject=%d: %v", c.UserID, c.SubjectID, err)
		return 0, err
	}
	log.Debug("review card inserted: id=%d user=%d subject=%d", id, c.UserID, c.SubjectID)
	return id, nil
}

func (r *reviewRepository) Update(ctx context.Context, c models.ReviewCard) error {
	log := logger.FromContext(ctx).WithPrefix("review_repo")

	err := execUpdate(ctx, r.db, sqlBuilder.Update("review_cards").
		Set("interval_days", c.IntervalDays).
		Set("ease_factor", c.EaseFactor).
		Set("repetitions", c.Repetitions).
		Set("next_due_at", c.NextDueAt.UTC()).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": c.ID}))
	if err != nil {
		log.Error("failed to update review card %d: %v", c.ID, err)
	}
	return err
}

func (r *reviewRepository) Due(ctx context.Context, userID int64, now time.Time) ([]models.ReviewCard, error) {
	var out []models.ReviewCard
	if err := selectAll(ctx, r.db, &out, cardSelect().
		Where(squirrel.Eq{"c.user_id": userID}).
		Where(squirrel.LtOrEq{"c.next_due_at": now.UTC()}).
		OrderBy("c.next_due_at ASC", "c.id ASC")); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var n int
	if _, err := getOne(ctx, r.db, &n, sqlBuilder.Select("COUNT(*)").From("review_cards").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.LtOrEq{"next_due_at": now.UTC()})); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *reviewRepository) ListByUser(ctx context.Context, userID int64) ([]models.ReviewCard, error) {
	var out []models.ReviewCard
	if err := selectAll(ctx, r.db, &out, cardSelect().
		Where(squirrel.Eq{"c.user_id": userID}).
		OrderBy("c.next_due_at ASC", "c.id ASC")); err != nil {
		return nil, err
	}
	return out, nil
}

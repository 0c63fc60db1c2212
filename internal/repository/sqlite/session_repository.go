package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
)

type sessionRepository struct {
	db sqlx.ExtContext
}

// NewSessionRepository creates a new SessionRepository implementation
func NewSessionRepository(db sqlx.ExtContext) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func sessionSelect() squirrel.SelectBuilder {
	return sqlBuilder.Select(
		"s.id", "s.user_id", "s.paragraph_id", "p.title AS paragraph_title", "p.content AS paragraph_content",
		"s.current_sentence_index", "s.status", "s.total_points", "s.skip_credits",
		"s.started_at", "s.completed_at", "s.updated_at",
	).From("practice_sessions s").Join("paragraphs p ON p.id = s.paragraph_id")
}

var attemptColumns = []string{
	"id", "session_id", "sentence_index", "original_sentence", "submitted_text", "accuracy",
	"points", "skipped", "retry_depth", "parent_attempt_id", "feedback", "created_at",
}

func (r *sessionRepository) Get(ctx context.Context, id int64) (*models.PracticeSession, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	var s models.PracticeSession
	found, err := getOne(ctx, r.db, &s, sessionSelect().Where(squirrel.Eq{"s.id": id}))
	if err != nil {
		log.Error("failed to get session %d: %v", id, err)
		return nil, err
	}
	if !found {
		log.Debug("session not found: id=%d", id)
		return nil, nil
	}
	return &s, nil
}

func (r *sessionRepository) FindInProgress(ctx context.Context, userID, paragraphID int64) (*models.PracticeSession, error) {
	var s models.PracticeSession
	found, err := getOne(ctx, r.db, &s, sessionSelect().
		Where(squirrel.Eq{"s.user_id": userID, "s.paragraph_id": paragraphID, "s.status": models.SessionInProgress}).
		OrderBy("s.id DESC").Limit(1))
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID int64) ([]models.PracticeSession, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	var out []models.PracticeSession
	if err := selectAll(ctx, r.db, &out, sessionSelect().Where(squirrel.Eq{"s.user_id": userID}).OrderBy("s.started_at DESC", "s.id DESC")); err != nil {
		log.Error("failed to list sessions for user %d: %v", userID, err)
		return nil, err
	}
	return out, nil
}

func (r *sessionRepository) Insert(ctx context.Context, s models.PracticeSession) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	now := time.Now().UTC()
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("practice_sessions").
		Columns("user_id", "paragraph_id", "current_sentence_index", "status", "total_points", "skip_credits", "started_at", "completed_at", "updated_at").
		Values(s.UserID, s.ParagraphID, s.CurrentSentenceIndex, s.Status, s.TotalPoints, s.SkipCredits, s.StartedAt, s.CompletedAt, s.UpdatedAt))
	if err != nil {
		log.Error("failed to insert session for user %d: %v", s.UserID, err)
		return 0, err
	}
	log.Debug("session inserted: id=%d user=%d paragraph=%d", id, s.UserID, s.ParagraphID)
	return id, nil
}

func (r *sessionRepository) Update(ctx context.Context, s models.PracticeSession) error {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	err := execUpdate(ctx, r.db, sqlBuilder.Update("practice_sessions").
		Set("current_sentence_index", s.CurrentSentenceIndex).
		Set("status", s.Status).
		Set("total_points", s.TotalPoints).
		Set("skip_credits", s.SkipCredits).
		Set("completed_at", s.CompletedAt).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": s.ID}))
	if err != nil {
		log.Error("failed to update session %d: %v", s.ID, err)
	}
	return err
}

func (r *sessionRepository) InsertAttempt(ctx context.Context, a models.Attempt) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Feedback.Errors == nil {
		a.Feedback.Errors = []models.TranslationError{}
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("attempts").
		Columns(attemptColumns[1:]...).
		Values(a.SessionID, a.SentenceIndex, a.OriginalSentence, a.SubmittedText, a.Accuracy,
			a.Points, a.Skipped, a.RetryDepth, a.ParentAttemptID, a.Feedback, a.CreatedAt))
	if err != nil {
		log.Error("failed to insert attempt for session %d: %v", a.SessionID, err)
		return 0, err
	}
	log.Debug("attempt inserted: id=%d session=%d index=%d", id, a.SessionID, a.SentenceIndex)
	return id, nil
}

func (r *sessionRepository) GetAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	var a models.Attempt
	found, err := getOne(ctx, r.db, &a, sqlBuilder.Select(attemptColumns...).From("attempts").Where(squirrel.Eq{"id": id}))
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (r *sessionRepository) ListAttempts(ctx context.Context, sessionID int64) ([]models.Attempt, error) {
	var out []models.Attempt
	if err := selectAll(ctx, r.db, &out, sqlBuilder.Select(attemptColumns...).From("attempts").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("id ASC")); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepository) InsertSummary(ctx context.Context, s models.SessionSummary) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	id, err := execInsert(ctx, r.db, sqlBuilder.Insert("session_summaries").
		Columns("session_id", "total_sentences", "completed_sentences", "average_accuracy", "total_points",
			"total_errors", "grammar_errors", "word_choice_errors", "naturalness_errors", "errors", "created_at").
		Values(s.SessionID, s.TotalSentences, s.CompletedSentences, s.AverageAccuracy, s.TotalPoints,
			s.TotalErrors, s.GrammarErrors, s.WordChoiceErrors, s.NaturalnessErrors, s.Errors, s.CreatedAt))
	if err != nil {
		log.Error("failed to insert summary for session %d: %v", s.SessionID, err)
		return 0, err
	}
	return id, nil
}

func (r *sessionRepository) GetSummary(ctx context.Context, sessionID int64) (*models.SessionSummary, error) {
	var s models.SessionSummary
	query, args, err := sqlBuilder.Select(
		"id", "session_id", "total_sentences", "completed_sentences", "average_accuracy", "total_points",
		"total_errors", "grammar_errors", "word_choice_errors", "naturalness_errors", "errors", "created_at",
	).From("session_summaries").Where(squirrel.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return nil, err
	}
	err = sqlx.GetContext(ctx, r.db, &s, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

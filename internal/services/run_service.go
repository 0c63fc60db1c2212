package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vytor/lingorun/internal/adaptive"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/paragraphcache"
	"github.com/vytor/lingorun/internal/repository"
)

// ContentSource supplies paragraph text for a difficulty level.
type ContentSource interface {
	Get(ctx context.Context, req paragraphcache.Request) (string, error)
	PrefetchTentative(ctx context.Context, userID int64, current int, language string, tentativeAccuracy float64, errorSummary, vocabHint string) int
}

// RunService drives adaptive runs: a chain of sessions whose difficulty
// follows the learner's accuracy
type RunService interface {
	CreateRun(ctx context.Context, userID int64, initialDifficulty int, language string) (*models.RandomRun, error)
	GetRun(ctx context.Context, runID int64) (*models.RandomRun, error)
	ListRuns(ctx context.Context, userID int64) ([]models.RandomRun, error)
	EndRun(ctx context.Context, runID int64) (*models.RandomRun, error)
	NextUnit(ctx context.Context, runID int64) (*models.RunUnit, error)
	SkipUnit(ctx context.Context, runID int64) (*models.RandomRun, error)
	CompleteUnit(ctx context.Context, runID, unitID int64, c models.UnitCompletion) (*models.RandomRun, error)
	// OnSessionCompleted rolls a finished session up into its run. It returns
	// (nil, nil) when the session is not part of a run.
	OnSessionCompleted(ctx context.Context, sessionID int64) (*models.RandomRun, error)
	// PrefetchForSession warms the cache for the difficulty the run is
	// heading towards. It is best effort.
	PrefetchForSession(ctx context.Context, sessionID int64) (int, bool)
}

type runService struct {
	store   repository.Store
	content ContentSource
	locks   *keyedMutex
	now     func() time.Time
	intn    func(n int) int
}

// NewRunService creates a new RunService
func NewRunService(store repository.Store, content ContentSource, now func() time.Time) RunService {
	if now == nil {
		now = time.Now
	}
	return &runService{
		store:   store,
		content: content,
		locks:   newKeyedMutex(),
		now:     now,
		intn:    rand.Intn,
	}
}

func (s *runService) loadRun(ctx context.Context, runID int64) (*models.RandomRun, error) {
	run, err := s.store.Repos().Runs.Get(ctx, runID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load run %d: %v", runID, err)
		return nil, errors.NewInternalError(err)
	}
	if run == nil {
		return nil, errors.NewNotFoundError("run", runID)
	}
	return run, nil
}

func (s *runService) loadActiveRun(ctx context.Context, runID int64) (*models.RandomRun, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunActive {
		return nil, errors.NewInvalidStateError("run", runID, "run is not active")
	}
	return run, nil
}

// chooseParagraph picks the text for the run's next unit. Generated text comes
// back unsaved (ID 0); on any pipeline failure a seed paragraph is drawn at
// random from the matching bucket, then from the whole pool.
func (s *runService) chooseParagraph(ctx context.Context, run *models.RandomRun) (*models.Paragraph, error) {
	log := logger.FromContext(ctx).WithPrefix("run").WithField("run_id", run.ID)

	req := paragraphcache.Request{
		UserID:     run.UserID,
		Difficulty: run.CurrentDifficulty,
		Language:   run.Language,
	}
	if last := run.LastCompletedUnit(); last != nil {
		req.ErrorSummary = last.ErrorSummary
		req.VocabHint = last.VocabHint
	}

	bucket := models.BucketForDifficulty(run.CurrentDifficulty)
	text, err := s.content.Get(ctx, req)
	if err == nil {
		return &models.Paragraph{
			Title:      fmt.Sprintf("Generated - Level %d", run.CurrentDifficulty),
			Content:    text,
			Difficulty: bucket,
			Topic:      "generated",
			Language:   run.Language,
			Source:     models.SourceGenerated,
			CreatedAt:  s.now().UTC(),
		}, nil
	}
	log.Warn("content pipeline failed at difficulty %d, falling back to seed pool: %v", run.CurrentDifficulty, err)

	repos := s.store.Repos()
	pool, err := repos.Paragraphs.ListSeed(ctx, bucket)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if len(pool) == 0 {
		log.Warn("no seed paragraphs for bucket %s, using whole pool", bucket)
		if pool, err = repos.Paragraphs.ListSeed(ctx, ""); err != nil {
			return nil, errors.NewInternalError(err)
		}
	}
	if len(pool) == 0 {
		log.Error("seed pool is empty")
		return nil, errors.NewNoContentError(run.CurrentDifficulty)
	}

	p := pool[s.intn(len(pool))]
	return &p, nil
}

// appendUnit persists paragraph if needed, wraps it in a session and appends
// a PENDING unit to run.
func (s *runService) appendUnit(ctx context.Context, tx repository.Repos, run *models.RandomRun, paragraph *models.Paragraph) error {
	if paragraph.ID == 0 {
		id, err := tx.Paragraphs.Insert(ctx, *paragraph)
		if err != nil {
			return err
		}
		paragraph.ID = id
	}

	session, err := startSession(ctx, tx, run.UserID, paragraph, s.now())
	if err != nil {
		return err
	}

	unit := models.RunUnit{
		RunID:       run.ID,
		OrderIndex:  run.NextOrderIndex(),
		Difficulty:  run.CurrentDifficulty,
		Status:      models.UnitPending,
		SessionID:   session.ID,
		ParagraphID: paragraph.ID,
		CreatedAt:   s.now().UTC(),
	}
	id, err := tx.Runs.InsertUnit(ctx, unit)
	if err != nil {
		return err
	}
	unit.ID = id
	run.Units = append(run.Units, unit)

	logger.FromContext(ctx).Info("run %d: unit %d at difficulty %d (paragraph %d, %s)",
		run.ID, unit.OrderIndex, unit.Difficulty, paragraph.ID, paragraph.Source)
	return nil
}

func (s *runService) CreateRun(ctx context.Context, userID int64, initialDifficulty int, language string) (*models.RandomRun, error) {
	log := logger.FromContext(ctx).WithPrefix("run")

	if language == "" {
		language = models.DefaultLanguage
	}
	difficulty := adaptive.Clamp(initialDifficulty)
	run := &models.RandomRun{
		UserID:            userID,
		Status:            models.RunActive,
		CurrentDifficulty: difficulty,
		InitialDifficulty: difficulty,
		Language:          language,
		StartedAt:         s.now().UTC(),
	}

	paragraph, err := s.chooseParagraph(ctx, run)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		id, err := tx.Runs.Insert(ctx, *run)
		if err != nil {
			return err
		}
		run.ID = id
		return s.appendUnit(ctx, tx, run, paragraph)
	})
	if err != nil {
		log.Error("failed to create run: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("created run %d for user %d at difficulty %d (%s)", run.ID, userID, difficulty, language)
	return run, nil
}

func (s *runService) GetRun(ctx context.Context, runID int64) (*models.RandomRun, error) {
	return s.loadRun(ctx, runID)
}

func (s *runService) ListRuns(ctx context.Context, userID int64) ([]models.RandomRun, error) {
	runs, err := s.store.Repos().Runs.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return runs, nil
}

func (s *runService) EndRun(ctx context.Context, runID int64) (*models.RandomRun, error) {
	unlock := s.locks.Lock(runID)
	defer unlock()

	run, err := s.loadActiveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	run.Status = models.RunCompleted
	run.EndedAt = &now
	if err := s.store.Repos().Runs.Update(ctx, *run); err != nil {
		logger.FromContext(ctx).Error("failed to end run %d: %v", runID, err)
		return nil, errors.NewInternalError(err)
	}

	logger.FromContext(ctx).Info("run %d ended after %d paragraphs", runID, run.ParagraphsCompleted)
	return run, nil
}

func (s *runService) NextUnit(ctx context.Context, runID int64) (*models.RunUnit, error) {
	unlock := s.locks.Lock(runID)
	defer unlock()

	run, err := s.loadActiveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	// A unit whose session finished without a rollup is rolled up here.
	if open := run.CurrentUnit(); open != nil {
		session, err := loadSession(ctx, s.store.Repos(), open.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Status == models.SessionCompleted {
			logger.FromContext(ctx).WithPrefix("run").Warn("run %d: unit %d has a completed session, rolling up", runID, open.ID)
			if run, err = s.completeUnit(ctx, runID, open.ID, sessionCompletion(session)); err != nil {
				return nil, err
			}
		}
	}

	if run.CurrentUnit() == nil {
		paragraph, err := s.chooseParagraph(ctx, run)
		if err != nil {
			return nil, err
		}
		if err := s.store.WithTx(ctx, func(tx repository.Repos) error {
			return s.appendUnit(ctx, tx, run, paragraph)
		}); err != nil {
			return nil, errors.NewInternalError(err)
		}
	}

	unit := run.CurrentUnit()
	if unit.Status == models.UnitPending {
		unit.Status = models.UnitInProgress
		if err := s.store.Repos().Runs.UpdateUnit(ctx, *unit); err != nil {
			logger.FromContext(ctx).Error("failed to start unit %d: %v", unit.ID, err)
			return nil, errors.NewInternalError(err)
		}
	}
	out := *unit
	return &out, nil
}

func (s *runService) SkipUnit(ctx context.Context, runID int64) (*models.RandomRun, error) {
	log := logger.FromContext(ctx).WithPrefix("run").WithField("run_id", runID)

	unlock := s.locks.Lock(runID)
	defer unlock()

	run, err := s.loadActiveRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	unit := run.CurrentUnit()
	if unit == nil {
		return nil, errors.NewInvalidStateError("run", runID, "no open unit to skip")
	}

	paragraph, err := s.chooseParagraph(ctx, run)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		now := s.now().UTC()
		unit.Status = models.UnitSkipped
		unit.CompletedAt = &now
		if err := tx.Runs.UpdateUnit(ctx, *unit); err != nil {
			return err
		}

		session, err := tx.Sessions.Get(ctx, unit.SessionID)
		if err != nil {
			return err
		}
		if session != nil && session.Status == models.SessionInProgress {
			session.Status = models.SessionAbandoned
			if err := tx.Sessions.Update(ctx, *session); err != nil {
				return err
			}
		}
		return s.appendUnit(ctx, tx, run, paragraph)
	})
	if err != nil {
		log.Error("failed to skip unit: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("skipped unit %d", unit.OrderIndex)
	return run, nil
}

func (s *runService) CompleteUnit(ctx context.Context, runID, unitID int64, c models.UnitCompletion) (*models.RandomRun, error) {
	unlock := s.locks.Lock(runID)
	defer unlock()
	return s.completeUnit(ctx, runID, unitID, c)
}

// completeUnit records the unit's metrics, rolls them into the run, steps the
// difficulty and appends the next unit in one transaction. Callers hold the
// run lock.
func (s *runService) completeUnit(ctx context.Context, runID, unitID int64, c models.UnitCompletion) (*models.RandomRun, error) {
	log := logger.FromContext(ctx).WithPrefix("run").WithField("run_id", runID)

	run, err := s.loadActiveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var unit *models.RunUnit
	for i := range run.Units {
		if run.Units[i].ID == unitID {
			unit = &run.Units[i]
		}
	}
	if unit == nil {
		return nil, errors.NewNotFoundError("run unit", unitID)
	}
	if unit.Status != models.UnitPending && unit.Status != models.UnitInProgress {
		return nil, errors.NewInvalidStateError("run unit", unitID, "unit is already closed")
	}

	if c.ErrorSummary == "" && c.VocabHint == "" {
		attempts, err := s.store.Repos().Sessions.ListAttempts(ctx, unit.SessionID)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		c.ErrorSummary = errorSummary(attempts)
		c.VocabHint = vocabHint(attempts)
	}

	now := s.now().UTC()
	unit.Status = models.UnitCompleted
	unit.Accuracy = &c.Accuracy
	unit.TimeSpentSeconds = &c.TimeSpentSeconds
	unit.Points = &c.Points
	unit.Credits = &c.Credits
	unit.ErrorSummary = c.ErrorSummary
	unit.VocabHint = c.VocabHint
	unit.CompletedAt = &now

	run.ParagraphsCompleted++
	run.TotalPoints += c.Points
	run.TotalCredits += c.Credits
	run.AverageAccuracy = completedAverage(run.Units)

	previous := run.CurrentDifficulty
	run.CurrentDifficulty = adaptive.Step(previous, c.Accuracy, run.ParagraphsCompleted)
	log.Info("unit %d completed: accuracy=%.1f difficulty %d -> %d", unit.OrderIndex, c.Accuracy, previous, run.CurrentDifficulty)

	paragraph, err := s.chooseParagraph(ctx, run)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		if err := tx.Runs.UpdateUnit(ctx, *unit); err != nil {
			return err
		}
		if err := tx.Runs.Update(ctx, *run); err != nil {
			return err
		}
		return s.appendUnit(ctx, tx, run, paragraph)
	})
	if err != nil {
		log.Error("failed to roll up unit %d: %v", unitID, err)
		return nil, errors.NewInternalError(err)
	}
	return run, nil
}

func completedAverage(units []models.RunUnit) float64 {
	var sum float64
	var n int
	for _, u := range units {
		if u.Status != models.UnitCompleted || u.Accuracy == nil {
			continue
		}
		sum += *u.Accuracy
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (s *runService) OnSessionCompleted(ctx context.Context, sessionID int64) (*models.RandomRun, error) {
	repos := s.store.Repos()
	unit, err := repos.Runs.UnitBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if unit == nil {
		return nil, nil
	}

	unlock := s.locks.Lock(unit.RunID)
	defer unlock()

	session, err := loadSession(ctx, repos, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, errors.NewInvalidStateError("session", sessionID, "session not completed yet")
	}

	return s.completeUnit(ctx, unit.RunID, unit.ID, sessionCompletion(session))
}

// sessionCompletion derives unit metrics from a finished session.
func sessionCompletion(session *models.PracticeSession) models.UnitCompletion {
	elapsed := 0
	if session.CompletedAt != nil {
		elapsed = int(session.CompletedAt.Sub(session.StartedAt).Seconds())
	}
	return models.UnitCompletion{
		Accuracy:         session.AverageAccuracy(),
		TimeSpentSeconds: elapsed,
		Points:           session.TotalPoints,
		Credits:          SessionBonusCredits,
		ErrorSummary:     errorSummary(session.Attempts),
		VocabHint:        vocabHint(session.Attempts),
	}
}

func (s *runService) PrefetchForSession(ctx context.Context, sessionID int64) (int, bool) {
	log := logger.FromContext(ctx).WithPrefix("run")
	repos := s.store.Repos()

	unit, err := repos.Runs.UnitBySession(ctx, sessionID)
	if err != nil || unit == nil {
		if err != nil {
			log.Warn("prefetch lookup failed for session %d: %v", sessionID, err)
		}
		return 0, false
	}
	run, err := repos.Runs.Get(ctx, unit.RunID)
	if err != nil || run == nil || run.Status != models.RunActive {
		return 0, false
	}
	session, err := loadSession(ctx, repos, sessionID)
	if err != nil || len(session.Attempts) == 0 {
		return 0, false
	}

	predicted := s.content.PrefetchTentative(ctx, run.UserID, run.CurrentDifficulty, run.Language,
		session.AverageAccuracy(), errorSummary(session.Attempts), vocabHint(session.Attempts))
	return predicted, true
}

package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
)

// Evaluator scores a translated sentence. Implementations are network bound
// and unreliable; failures are absorbed into a zero-score verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.Feedback, error)
}

// SubmitRequest is one translation submission. A retry needs ParentAttemptID;
// without it the submission is scored as a fresh attempt.
type SubmitRequest struct {
	SessionID       int64  `json:"-"`
	Text            string `json:"text"`
	IsRetry         bool   `json:"is_retry"`
	ParentAttemptID *int64 `json:"parent_attempt_id,omitempty"`
}

// SentenceResult is returned by submit and skip with the updated session.
type SentenceResult struct {
	Attempt        models.Attempt          `json:"attempt"`
	Feedback       *models.Feedback        `json:"feedback,omitempty"`
	Session        *models.PracticeSession `json:"session"`
	IsLastSentence bool                    `json:"is_last_sentence"`
	NextIndex      int                     `json:"next_index"`
	NextSentence   string                  `json:"next_sentence,omitempty"`
	Completed      bool                    `json:"completed"`
}

// SessionService drives the per-paragraph attempt state machine
type SessionService interface {
	CreateSession(ctx context.Context, userID, paragraphID int64) (*models.PracticeSession, error)
	GetSession(ctx context.Context, sessionID int64) (*models.PracticeSession, error)
	ListSessions(ctx context.Context, userID int64) ([]models.PracticeSession, error)
	Submit(ctx context.Context, req SubmitRequest) (*SentenceResult, error)
	Skip(ctx context.Context, sessionID int64) (*SentenceResult, error)
	Progress(ctx context.Context, sessionID int64) (*models.SessionProgress, error)
	Summary(ctx context.Context, sessionID int64) (*models.SessionSummary, error)
}

type sessionService struct {
	store       repository.Store
	evaluator   Evaluator
	evalTimeout time.Duration
	locks       *keyedMutex
	now         func() time.Time
}

// NewSessionService creates a new SessionService. evalTimeout bounds each
// evaluator call; zero leaves it to the evaluator.
func NewSessionService(store repository.Store, evaluator Evaluator, evalTimeout time.Duration, now func() time.Time) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		store:       store,
		evaluator:   evaluator,
		evalTimeout: evalTimeout,
		locks:       newKeyedMutex(),
		now:         now,
	}
}

// loadSession returns the session with its attempts, or NotFound.
func loadSession(ctx context.Context, repos repository.Repos, sessionID int64) (*models.PracticeSession, error) {
	session, err := repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load session %d: %v", sessionID, err)
		return nil, errors.NewInternalError(err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	attempts, err := repos.Sessions.ListAttempts(ctx, sessionID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load attempts for session %d: %v", sessionID, err)
		return nil, errors.NewInternalError(err)
	}
	session.Attempts = attempts
	return session, nil
}

// startSession inserts a fresh IN_PROGRESS session over paragraph.
func startSession(ctx context.Context, repos repository.Repos, userID int64, paragraph *models.Paragraph, now time.Time) (*models.PracticeSession, error) {
	session := models.PracticeSession{
		UserID:           userID,
		ParagraphID:      paragraph.ID,
		ParagraphTitle:   paragraph.Title,
		ParagraphContent: paragraph.Content,
		Status:           models.SessionInProgress,
		SkipCredits:      models.InitialSkipCredits,
		StartedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	id, err := repos.Sessions.Insert(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id
	return &session, nil
}

func (s *sessionService) CreateSession(ctx context.Context, userID, paragraphID int64) (*models.PracticeSession, error) {
	log := logger.FromContext(ctx).WithPrefix("session")
	log.Debug("creating session: user=%d paragraph=%d", userID, paragraphID)

	repos := s.store.Repos()
	paragraph, err := repos.Paragraphs.Get(ctx, paragraphID)
	if err != nil {
		log.Error("failed to load paragraph: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if paragraph == nil {
		return nil, errors.NewNotFoundError("paragraph", paragraphID)
	}

	existing, err := repos.Sessions.FindInProgress(ctx, userID, paragraphID)
	if err != nil {
		log.Error("failed to look up in-progress session: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if existing != nil {
		log.Info("resuming session %d for user %d", existing.ID, userID)
		return loadSession(ctx, repos, existing.ID)
	}

	session, err := startSession(ctx, repos, userID, paragraph, s.now())
	if err != nil {
		log.Error("failed to create session: %v", err)
		return nil, errors.NewInternalError(err)
	}
	log.Info("created session %d for user %d (%d sentences)", session.ID, userID, len(session.Sentences()))
	return session, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID int64) (*models.PracticeSession, error) {
	return loadSession(ctx, s.store.Repos(), sessionID)
}

func (s *sessionService) ListSessions(ctx context.Context, userID int64) ([]models.PracticeSession, error) {
	sessions, err := s.store.Repos().Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return sessions, nil
}

// evaluate calls the evaluator under its timeout and substitutes a zero-score
// verdict on any failure.
func (s *sessionService) evaluate(ctx context.Context, req models.EvaluationRequest) models.Feedback {
	log := logger.FromContext(ctx).WithPrefix("session")

	evalCtx := ctx
	if s.evalTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, s.evalTimeout)
		defer cancel()
	}

	start := time.Now()
	fb, err := s.evaluator.Evaluate(evalCtx, req)
	if err != nil || fb == nil {
		if err == nil {
			err = stderrors.New("evaluator returned no verdict")
		}
		log.Warn("%v", errors.NewEvaluationFailedError(err))
		return models.ZeroFeedback()
	}
	if fb.Errors == nil {
		fb.Errors = []models.TranslationError{}
	}
	log.Debug("evaluated in %dms: accuracy=%.1f errors=%d", time.Since(start).Milliseconds(), fb.Scores.Accuracy(), len(fb.Errors))
	return *fb
}

func (s *sessionService) Submit(ctx context.Context, req SubmitRequest) (*SentenceResult, error) {
	log := logger.FromContext(ctx).WithPrefix("session").WithField("session_id", req.SessionID)

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.NewValidationError("text", "cannot be empty")
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	repos := s.store.Repos()
	session, err := loadSession(ctx, repos, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, errors.NewInvalidStateError("session", session.ID, "session is not in progress")
	}

	retry := req.IsRetry && req.ParentAttemptID != nil
	index := session.CurrentSentenceIndex
	var parent *models.Attempt
	if retry {
		parent, err = repos.Sessions.GetAttempt(ctx, *req.ParentAttemptID)
		if err != nil {
			log.Error("failed to load parent attempt: %v", err)
			return nil, errors.NewInternalError(err)
		}
		if parent == nil || parent.SessionID != session.ID {
			return nil, errors.NewNotFoundError("attempt", *req.ParentAttemptID)
		}
		index = parent.SentenceIndex
	}

	sentences := session.Sentences()
	if index >= len(sentences) {
		return nil, errors.NewInvalidStateError("session", session.ID, "no more sentences to translate")
	}
	original := sentences[index]

	fb := s.evaluate(ctx, models.EvaluationRequest{
		Original:          original,
		Submission:        text,
		ParagraphContext:  session.ParagraphContent,
		PriorTranslations: priorTranslations(session.Attempts),
	})
	accuracy := fb.Scores.Accuracy()
	points := PointsFor(accuracy, retry)

	attempt := models.Attempt{
		SessionID:        session.ID,
		SentenceIndex:    index,
		OriginalSentence: original,
		SubmittedText:    &text,
		Accuracy:         accuracy,
		Points:           points,
		Feedback:         fb,
		CreatedAt:        s.now().UTC(),
	}
	if retry {
		attempt.RetryDepth = parent.RetryDepth + 1
		attempt.ParentAttemptID = &parent.ID
	}

	isLast := index == len(sentences)-1
	result := &SentenceResult{IsLastSentence: isLast, NextIndex: session.CurrentSentenceIndex}

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		id, err := tx.Sessions.InsertAttempt(ctx, attempt)
		if err != nil {
			return err
		}
		attempt.ID = id
		session.Attempts = append(session.Attempts, attempt)

		if retry {
			return nil
		}

		session.TotalPoints += points
		if accuracy < PassAccuracy {
			if _, err := enqueueReview(ctx, tx, session.UserID, attempt.ID, s.now()); err != nil {
				return err
			}
		}

		if isLast {
			if err := s.finalize(ctx, tx, session); err != nil {
				return err
			}
		} else if accuracy >= PassAccuracy {
			session.CurrentSentenceIndex++
		}
		return tx.Sessions.Update(ctx, *session)
	})
	if err != nil {
		log.Error("failed to record attempt: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("attempt %d recorded: index=%d accuracy=%.1f points=%d retry=%t", attempt.ID, index, accuracy, points, retry)

	result.Attempt = attempt
	result.Feedback = &fb
	result.Session = session
	result.Completed = session.Status == models.SessionCompleted
	result.NextIndex = session.CurrentSentenceIndex
	if !result.Completed && result.NextIndex < len(sentences) {
		result.NextSentence = sentences[result.NextIndex]
	}
	return result, nil
}

func (s *sessionService) Skip(ctx context.Context, sessionID int64) (*SentenceResult, error) {
	log := logger.FromContext(ctx).WithPrefix("session").WithField("session_id", sessionID)

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := loadSession(ctx, s.store.Repos(), sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, errors.NewInvalidStateError("session", session.ID, "session is not in progress")
	}
	if session.SkipCredits <= 0 {
		return nil, errors.NewInsufficientCreditsError(session.ID)
	}

	sentences := session.Sentences()
	index := session.CurrentSentenceIndex
	if index >= len(sentences) {
		return nil, errors.NewInvalidStateError("session", session.ID, "no more sentences to skip")
	}

	attempt := models.Attempt{
		SessionID:        session.ID,
		SentenceIndex:    index,
		OriginalSentence: sentences[index],
		Skipped:          true,
		Feedback:         models.Feedback{Errors: []models.TranslationError{}},
		CreatedAt:        s.now().UTC(),
	}
	isLast := index == len(sentences)-1

	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		id, err := tx.Sessions.InsertAttempt(ctx, attempt)
		if err != nil {
			return err
		}
		attempt.ID = id
		session.Attempts = append(session.Attempts, attempt)
		session.SkipCredits--

		if isLast {
			if err := s.finalize(ctx, tx, session); err != nil {
				return err
			}
		} else {
			session.CurrentSentenceIndex++
		}
		return tx.Sessions.Update(ctx, *session)
	})
	if err != nil {
		log.Error("failed to record skip: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("sentence %d skipped, %d credits left", index, session.SkipCredits)

	result := &SentenceResult{
		Attempt:        attempt,
		Session:        session,
		IsLastSentence: isLast,
		NextIndex:      session.CurrentSentenceIndex,
		Completed:      session.Status == models.SessionCompleted,
	}
	if !result.Completed && result.NextIndex < len(sentences) {
		result.NextSentence = sentences[result.NextIndex]
	}
	return result, nil
}

// finalize completes the session, writes its summary and credits the ledger.
// The caller persists the session row in the same transaction.
func (s *sessionService) finalize(ctx context.Context, tx repository.Repos, session *models.PracticeSession) error {
	now := s.now().UTC()
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	session.CurrentSentenceIndex = len(session.Sentences())

	summary := buildSummary(session)
	summary.CreatedAt = now
	if _, err := tx.Sessions.InsertSummary(ctx, summary); err != nil {
		return err
	}
	if err := tx.Ledger.AwardPoints(ctx, session.UserID, session.TotalPoints); err != nil {
		return err
	}
	if err := tx.Ledger.CompleteSessionBonus(ctx, session.UserID, SessionBonusCredits); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("session %d completed: points=%d accuracy=%.1f errors=%d",
		session.ID, session.TotalPoints, summary.AverageAccuracy, summary.TotalErrors)
	return nil
}

func (s *sessionService) Progress(ctx context.Context, sessionID int64) (*models.SessionProgress, error) {
	session, err := loadSession(ctx, s.store.Repos(), sessionID)
	if err != nil {
		return nil, err
	}

	total := len(session.Sentences())
	completed := session.CompletedSentences()
	var pct float64
	if total > 0 {
		pct = float64(completed) * 100 / float64(total)
	}
	return &models.SessionProgress{
		SessionID:          session.ID,
		CompletedSentences: completed,
		TotalSentences:     total,
		Percentage:         pct,
		AverageAccuracy:    session.AverageAccuracy(),
		TotalPoints:        session.TotalPoints,
		Status:             session.Status,
	}, nil
}

func (s *sessionService) Summary(ctx context.Context, sessionID int64) (*models.SessionSummary, error) {
	repos := s.store.Repos()
	session, err := repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	if session.Status != models.SessionCompleted {
		return nil, errors.NewInvalidStateError("session", sessionID, "session not completed yet")
	}

	summary, err := repos.Sessions.GetSummary(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if summary == nil {
		return nil, errors.NewNotFoundError("session summary", sessionID)
	}
	return summary, nil
}

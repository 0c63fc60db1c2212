package services

import (
	"context"
	"time"

	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/review"
)

// ReviewService handles the spaced-repetition queue of missed sentences
type ReviewService interface {
	Enqueue(ctx context.Context, userID, subjectID int64) (*models.ReviewCard, error)
	Submit(ctx context.Context, userID, subjectID int64, quality int) (*models.ReviewCard, error)
	Due(ctx context.Context, userID int64, now time.Time) ([]models.ReviewCard, error)
	DueCount(ctx context.Context, userID int64, now time.Time) (int, error)
	List(ctx context.Context, userID int64) ([]models.ReviewCard, error)
}

type reviewService struct {
	store repository.Store
	now   func() time.Time
}

// NewReviewService creates a new ReviewService
func NewReviewService(store repository.Store, now func() time.Time) ReviewService {
	if now == nil {
		now = time.Now
	}
	return &reviewService{store: store, now: now}
}

// enqueueReview creates the card for (user, subject) unless one exists.
func enqueueReview(ctx context.Context, repos repository.Repos, userID, subjectID int64, now time.Time) (*models.ReviewCard, error) {
	existing, err := repos.Reviews.Find(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.FromContext(ctx).Debug("review card already queued: user=%d subject=%d", userID, subjectID)
		return existing, nil
	}

	card := review.NewCard(userID, subjectID, now.UTC())
	id, err := repos.Reviews.Insert(ctx, card)
	if err != nil {
		return nil, err
	}
	card.ID = id
	logger.FromContext(ctx).Info("queued review card %d: user=%d subject=%d due=%s", id, userID, subjectID, card.NextDueAt.Format(time.RFC3339))
	return &card, nil
}

func (s *reviewService) Enqueue(ctx context.Context, userID, subjectID int64) (*models.ReviewCard, error) {
	card, err := enqueueReview(ctx, s.store.Repos(), userID, subjectID, s.now())
	if err != nil {
		logger.FromContext(ctx).Error("failed to enqueue review: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return card, nil
}

func (s *reviewService) Submit(ctx context.Context, userID, subjectID int64, quality int) (*models.ReviewCard, error) {
	log := logger.FromContext(ctx).WithPrefix("review")
	log.Debug("reviewing card: user=%d subject=%d quality=%d", userID, subjectID, quality)

	if quality < review.MinQuality || quality > review.MaxQuality {
		return nil, errors.NewValidationError("quality", "must be between 0 and 5")
	}

	repos := s.store.Repos()
	card, err := repos.Reviews.Find(ctx, userID, subjectID)
	if err != nil {
		log.Error("failed to load review card: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if card == nil {
		return nil, errors.NewNotFoundError("review card", subjectID)
	}

	updated := review.ApplyReview(*card, quality, s.now().UTC())
	log.Debug("applied review, new interval=%d days, ease_factor=%.2f, repetitions=%d", updated.IntervalDays, updated.EaseFactor, updated.Repetitions)

	if err := repos.Reviews.Update(ctx, updated); err != nil {
		log.Error("failed to update review card: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return &updated, nil
}

func (s *reviewService) Due(ctx context.Context, userID int64, now time.Time) ([]models.ReviewCard, error) {
	cards, err := s.store.Repos().Reviews.Due(ctx, userID, now)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load due cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return cards, nil
}

func (s *reviewService) DueCount(ctx context.Context, userID int64, now time.Time) (int, error) {
	n, err := s.store.Repos().Reviews.CountDue(ctx, userID, now)
	if err != nil {
		logger.FromContext(ctx).Error("failed to count due cards: %v", err)
		return 0, errors.NewInternalError(err)
	}
	return n, nil
}

func (s *reviewService) List(ctx context.Context, userID int64) ([]models.ReviewCard, error) {
	cards, err := s.store.Repos().Reviews.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cards, nil
}

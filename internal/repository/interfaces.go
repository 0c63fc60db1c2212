package repository

import (
	"context"
	"time"

	"github.com/vytor/lingorun/internal/models"
)

// Lookups return (nil, nil) when the row does not exist.

// ParagraphRepository handles paragraph pool data access
type ParagraphRepository interface {
	Get(ctx context.Context, id int64) (*models.Paragraph, error)
	Insert(ctx context.Context, p models.Paragraph) (int64, error)
	// ListSeed returns static-pool paragraphs, optionally restricted to one bucket.
	ListSeed(ctx context.Context, bucket string) ([]models.Paragraph, error)
	CountSeed(ctx context.Context) (int, error)
	ExistsSeedTitle(ctx context.Context, title string) (bool, error)
}

// SessionRepository handles practice session, attempt and summary data access
type SessionRepository interface {
	Get(ctx context.Context, id int64) (*models.PracticeSession, error)
	FindInProgress(ctx context.Context, userID, paragraphID int64) (*models.PracticeSession, error)
	ListByUser(ctx context.Context, userID int64) ([]models.PracticeSession, error)
	Insert(ctx context.Context, s models.PracticeSession) (int64, error)
	Update(ctx context.Context, s models.PracticeSession) error

	InsertAttempt(ctx context.Context, a models.Attempt) (int64, error)
	GetAttempt(ctx context.Context, id int64) (*models.Attempt, error)
	ListAttempts(ctx context.Context, sessionID int64) ([]models.Attempt, error)

	InsertSummary(ctx context.Context, s models.SessionSummary) (int64, error)
	GetSummary(ctx context.Context, sessionID int64) (*models.SessionSummary, error)
}

// RunRepository handles adaptive run and run unit data access
type RunRepository interface {
	// Get loads the run with its units ordered by order index.
	Get(ctx context.Context, id int64) (*models.RandomRun, error)
	ListByUser(ctx context.Context, userID int64) ([]models.RandomRun, error)
	Insert(ctx context.Context, r models.RandomRun) (int64, error)
	Update(ctx context.Context, r models.RandomRun) error

	InsertUnit(ctx context.Context, u models.RunUnit) (int64, error)
	UpdateUnit(ctx context.Context, u models.RunUnit) error
	UnitBySession(ctx context.Context, sessionID int64) (*models.RunUnit, error)
}

// ReviewRepository handles spaced-repetition card data access
type ReviewRepository interface {
	Find(ctx context.Context, userID, subjectID int64) (*models.ReviewCard, error)
	Insert(ctx context.Context, c models.ReviewCard) (int64, error)
	Update(ctx context.Context, c models.ReviewCard) error
	Due(ctx context.Context, userID int64, now time.Time) ([]models.ReviewCard, error)
	CountDue(ctx context.Context, userID int64, now time.Time) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]models.ReviewCard, error)
}

// LedgerRepository keeps the per-user points and credits balance
type LedgerRepository interface {
	AwardPoints(ctx context.Context, userID int64, points int) error
	AwardCredits(ctx context.Context, userID int64, amount int) error
	// CompleteSessionBonus counts a finished session and grants its bonus credits.
	CompleteSessionBonus(ctx context.Context, userID int64, credits int) error
	Get(ctx context.Context, userID int64) (*models.UserBalance, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Paragraphs ParagraphRepository
	Sessions   SessionRepository
	Runs       RunRepository
	Reviews    ReviewRepository
	Ledger     LedgerRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repos
	// WithTx runs fn against repositories bound to a single transaction,
	// committing when fn returns nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(Repos) error) error
}

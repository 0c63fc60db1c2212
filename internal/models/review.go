package models

import "time"

// Initial SM2 parameters of a freshly enqueued card.
const (
	InitialIntervalDays = 1
	InitialEaseFactor   = 2.5
	MinEaseFactor       = 1.3
)

// ReviewCard schedules a missed attempt for spaced review. SubjectID is the
// attempt that triggered the card; Sentence is joined in for display.
type ReviewCard struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	SubjectID    int64     `json:"subject_id" db:"subject_id"`
	Sentence     string    `json:"sentence,omitempty" db:"sentence"`
	IntervalDays int       `json:"interval_days" db:"interval_days"`
	EaseFactor   float64   `json:"ease_factor" db:"ease_factor"`
	Repetitions  int       `json:"repetitions" db:"repetitions"`
	NextDueAt    time.Time `json:"next_due_at" db:"next_due_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserBalance is the per-user points and credits ledger.
type UserBalance struct {
	UserID            int64     `json:"user_id" db:"user_id"`
	Points            int       `json:"points" db:"points"`
	Credits           int       `json:"credits" db:"credits"`
	SessionsCompleted int       `json:"sessions_completed" db:"sessions_completed"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

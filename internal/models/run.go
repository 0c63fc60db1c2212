package models

import "time"

type RunStatus string

const (
	RunActive    RunStatus = "ACTIVE"
	RunCompleted RunStatus = "COMPLETED"
	RunAbandoned RunStatus = "ABANDONED"
)

type UnitStatus string

const (
	UnitPending    UnitStatus = "PENDING"
	UnitInProgress UnitStatus = "IN_PROGRESS"
	UnitCompleted  UnitStatus = "COMPLETED"
	UnitSkipped    UnitStatus = "SKIPPED"
)

// RandomRun is a continuous adaptive sequence of paragraphs.
type RandomRun struct {
	ID                  int64      `json:"id" db:"id"`
	UserID              int64      `json:"user_id" db:"user_id"`
	Status              RunStatus  `json:"status" db:"status"`
	CurrentDifficulty   int        `json:"current_difficulty" db:"current_difficulty"`
	InitialDifficulty   int        `json:"initial_difficulty" db:"initial_difficulty"`
	Language            string     `json:"language" db:"language"`
	ParagraphsCompleted int        `json:"paragraphs_completed" db:"paragraphs_completed"`
	TotalPoints         int        `json:"total_points" db:"total_points"`
	TotalCredits        int        `json:"total_credits" db:"total_credits"`
	AverageAccuracy     float64    `json:"average_accuracy" db:"average_accuracy"`
	StartedAt           time.Time  `json:"started_at" db:"started_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	Units []RunUnit `json:"units,omitempty" db:"-"`
}

// CurrentUnit returns the newest unit that is still open, or nil.
func (r *RandomRun) CurrentUnit() *RunUnit {
	var cur *RunUnit
	for i := range r.Units {
		u := &r.Units[i]
		if u.Status != UnitPending && u.Status != UnitInProgress {
			continue
		}
		if cur == nil || u.OrderIndex > cur.OrderIndex {
			cur = u
		}
	}
	return cur
}

// NextOrderIndex is one past the highest order index, or 0 for an empty run.
func (r *RandomRun) NextOrderIndex() int {
	next := 0
	for _, u := range r.Units {
		if u.OrderIndex+1 > next {
			next = u.OrderIndex + 1
		}
	}
	return next
}

// LastCompletedUnit returns the completed unit with the highest order index, or nil.
func (r *RandomRun) LastCompletedUnit() *RunUnit {
	var last *RunUnit
	for i := range r.Units {
		u := &r.Units[i]
		if u.Status != UnitCompleted {
			continue
		}
		if last == nil || u.OrderIndex > last.OrderIndex {
			last = u
		}
	}
	return last
}

// RunUnit is one paragraph-sized segment of a run. It references, but does
// not own, the practice session it wraps.
type RunUnit struct {
	ID               int64      `json:"id" db:"id"`
	RunID            int64      `json:"run_id" db:"run_id"`
	OrderIndex       int        `json:"order_index" db:"order_index"`
	Difficulty       int        `json:"difficulty" db:"difficulty"`
	Status           UnitStatus `json:"status" db:"status"`
	SessionID        int64      `json:"session_id" db:"session_id"`
	ParagraphID      int64      `json:"paragraph_id" db:"paragraph_id"`
	Accuracy         *float64   `json:"accuracy,omitempty" db:"accuracy"`
	TimeSpentSeconds *int       `json:"time_spent_seconds,omitempty" db:"time_spent_seconds"`
	Points           *int       `json:"points,omitempty" db:"points"`
	Credits          *int       `json:"credits,omitempty" db:"credits"`
	ErrorSummary     string     `json:"error_summary,omitempty" db:"error_summary"`
	VocabHint        string     `json:"vocab_hint,omitempty" db:"vocab_hint"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// UnitCompletion carries the metrics recorded when a unit completes.
type UnitCompletion struct {
	Accuracy         float64 `json:"accuracy"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	Points           int     `json:"points"`
	Credits          int     `json:"credits"`
	ErrorSummary     string  `json:"error_summary,omitempty"`
	VocabHint        string  `json:"vocab_hint,omitempty"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "NOT_STARTED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

// InitialSkipCredits is the skip allowance a new session starts with.
const InitialSkipCredits = 6

// PracticeSession is one learner's pass over a paragraph, sentence by sentence.
// ParagraphContent and ParagraphTitle are joined in from the paragraph row.
type PracticeSession struct {
	ID                   int64         `json:"id" db:"id"`
	UserID               int64         `json:"user_id" db:"user_id"`
	ParagraphID          int64         `json:"paragraph_id" db:"paragraph_id"`
	ParagraphTitle       string        `json:"paragraph_title" db:"paragraph_title"`
	ParagraphContent     string        `json:"-" db:"paragraph_content"`
	CurrentSentenceIndex int           `json:"current_sentence_index" db:"current_sentence_index"`
	Status               SessionStatus `json:"status" db:"status"`
	TotalPoints          int           `json:"total_points" db:"total_points"`
	SkipCredits          int           `json:"skip_credits" db:"skip_credits"`
	StartedAt            time.Time     `json:"started_at" db:"started_at"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`

	Attempts []Attempt `json:"attempts,omitempty" db:"-"`
}

// Sentences returns the ordered sentences of the session's paragraph.
func (s *PracticeSession) Sentences() []string {
	return SplitSentences(s.ParagraphContent)
}

// AverageAccuracy is the mean accuracy over every recorded attempt, 0 when there are none.
func (s *PracticeSession) AverageAccuracy() float64 {
	if len(s.Attempts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range s.Attempts {
		sum += a.Accuracy
	}
	return sum / float64(len(s.Attempts))
}

// CompletedSentences counts distinct sentence indices that have any attempt, skips included.
func (s *PracticeSession) CompletedSentences() int {
	seen := make(map[int]struct{}, len(s.Attempts))
	for _, a := range s.Attempts {
		seen[a.SentenceIndex] = struct{}{}
	}
	return len(seen)
}

// Attempt records a single submission or skip for one sentence.
type Attempt struct {
	ID               int64     `json:"id" db:"id"`
	SessionID        int64     `json:"session_id" db:"session_id"`
	SentenceIndex    int       `json:"sentence_index" db:"sentence_index"`
	OriginalSentence string    `json:"original_sentence" db:"original_sentence"`
	SubmittedText    *string   `json:"submitted_text,omitempty" db:"submitted_text"`
	Accuracy         float64   `json:"accuracy" db:"accuracy"`
	Points           int       `json:"points" db:"points"`
	Skipped          bool      `json:"skipped" db:"skipped"`
	RetryDepth       int       `json:"retry_depth" db:"retry_depth"`
	ParentAttemptID  *int64    `json:"parent_attempt_id,omitempty" db:"parent_attempt_id"`
	Feedback         Feedback  `json:"feedback" db:"feedback"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// IsRetry reports whether the attempt is chained to an earlier one.
func (a Attempt) IsRetry() bool {
	return a.ParentAttemptID != nil
}

type ScoreBreakdown struct {
	Grammar     int `json:"grammar"`
	WordChoice  int `json:"word_choice"`
	Naturalness int `json:"naturalness"`
}

// Accuracy is the arithmetic mean of the three axes.
func (s ScoreBreakdown) Accuracy() float64 {
	return float64(s.Grammar+s.WordChoice+s.Naturalness) / 3.0
}

type TranslationError struct {
	Type        string `json:"type"`
	Position    string `json:"position,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Correction  string `json:"correction,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	QuickFix    string `json:"quick_fix,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Feedback is the structured evaluator verdict stored alongside an attempt.
type Feedback struct {
	Scores             ScoreBreakdown     `json:"scores"`
	Errors             []TranslationError `json:"errors"`
	Suggestions        []string           `json:"suggestions,omitempty"`
	CorrectTranslation string             `json:"correct_translation,omitempty"`
}

// UnavailableFeedbackMessage is the suggestion attached to a zero-score verdict.
const UnavailableFeedbackMessage = "Unable to evaluate translation. Please try again."

// ZeroFeedback is the deterministic verdict used when the evaluator fails.
func ZeroFeedback() Feedback {
	return Feedback{
		Errors:      []TranslationError{},
		Suggestions: []string{UnavailableFeedbackMessage},
	}
}

// Value implements driver.Valuer.
func (f Feedback) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *Feedback) Scan(src any) error {
	return scanJSON(src, f)
}

// SessionProgress is a read-only snapshot of a session.
type SessionProgress struct {
	SessionID          int64         `json:"session_id"`
	CompletedSentences int           `json:"completed_sentences"`
	TotalSentences     int           `json:"total_sentences"`
	Percentage         float64       `json:"percentage"`
	AverageAccuracy    float64       `json:"average_accuracy"`
	TotalPoints        int           `json:"total_points"`
	Status             SessionStatus `json:"status"`
}

type SummaryError struct {
	SentenceIndex int    `json:"sentence_index"`
	Original      string `json:"original"`
	Submitted     string `json:"submitted"`
	Type          string `json:"type"`
	QuickFix      string `json:"quick_fix,omitempty"`
	Correction    string `json:"correction,omitempty"`
}

// SummaryErrors is the JSON-encoded error list of a session summary.
type SummaryErrors []SummaryError

func (e SummaryErrors) Value() (driver.Value, error) {
	if e == nil {
		e = SummaryErrors{}
	}
	b, err := json.Marshal([]SummaryError(e))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *SummaryErrors) Scan(src any) error {
	return scanJSON(src, e)
}

// SessionSummary is written once when a session completes.
type SessionSummary struct {
	ID                 int64         `json:"id" db:"id"`
	SessionID          int64         `json:"session_id" db:"session_id"`
	TotalSentences     int           `json:"total_sentences" db:"total_sentences"`
	CompletedSentences int           `json:"completed_sentences" db:"completed_sentences"`
	AverageAccuracy    float64       `json:"average_accuracy" db:"average_accuracy"`
	TotalPoints        int           `json:"total_points" db:"total_points"`
	TotalErrors        int           `json:"total_errors" db:"total_errors"`
	GrammarErrors      int           `json:"grammar_errors" db:"grammar_errors"`
	WordChoiceErrors   int           `json:"word_choice_errors" db:"word_choice_errors"`
	NaturalnessErrors  int           `json:"naturalness_errors" db:"naturalness_errors"`
	Errors             SummaryErrors `json:"errors" db:"errors"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
}

func scanJSON(src any, dest any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dest)
}

package review

import (
	"math"
	"time"

	"github.com/vytor/lingorun/internal/models"
)

// Quality bounds accepted by Update.
const (
	MinQuality = 0
	MaxQuality = 5
)

// Schedule is the SM2 state of a card.
type Schedule struct {
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
}

// Update applies one SM2 step. quality: 0-2 failed recall, 3-5 successful recall.
// The interval growth uses the pre-update interval and the new ease factor.
func Update(quality int, cur Schedule) Schedule {
	miss := float64(5 - quality)
	ease := cur.EaseFactor + (0.1 - miss*(0.08+miss*0.02))
	if ease < models.MinEaseFactor {
		ease = models.MinEaseFactor
	}

	if quality < 3 {
		return Schedule{IntervalDays: 1, EaseFactor: ease, Repetitions: 0}
	}

	reps := cur.Repetitions + 1
	var interval int
	switch reps {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		interval = int(math.Round(float64(cur.IntervalDays) * ease))
	}
	return Schedule{IntervalDays: interval, EaseFactor: ease, Repetitions: reps}
}

// NewCard returns a card for a first qualifying failure, due one day after now.
func NewCard(userID, subjectID int64, now time.Time) models.ReviewCard {
	return models.ReviewCard{
		UserID:       userID,
		SubjectID:    subjectID,
		IntervalDays: models.InitialIntervalDays,
		EaseFactor:   models.InitialEaseFactor,
		Repetitions:  0,
		NextDueAt:    now.AddDate(0, 0, 1),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ApplyReview runs Update over a card and reschedules it relative to now.
func ApplyReview(card models.ReviewCard, quality int, now time.Time) models.ReviewCard {
	next := Update(quality, Schedule{
		IntervalDays: card.IntervalDays,
		EaseFactor:   card.EaseFactor,
		Repetitions:  card.Repetitions,
	})
	card.IntervalDays = next.IntervalDays
	card.EaseFactor = next.EaseFactor
	card.Repetitions = next.Repetitions
	card.NextDueAt = now.AddDate(0, 0, next.IntervalDays)
	card.UpdatedAt = now
	return card
}

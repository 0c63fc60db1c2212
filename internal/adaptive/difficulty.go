// Package adaptive holds the pure difficulty rules of an adaptive run.
package adaptive

import "github.com/vytor/lingorun/internal/models"

// Clamp bounds a difficulty level to [MinDifficulty, MaxDifficulty].
func Clamp(level int) int {
	if level < models.MinDifficulty {
		return models.MinDifficulty
	}
	if level > models.MaxDifficulty {
		return models.MaxDifficulty
	}
	return level
}

// Step returns the difficulty following a completed unit. completed is the
// run's completed-unit count including the unit just finished; in the 85-95
// band the level only rises on even counts.
func Step(current int, accuracy float64, completed int) int {
	next := current
	switch {
	case accuracy >= 95:
		next = current + 1
	case accuracy >= 85:
		if completed%2 == 0 {
			next = current + 1
		}
	case accuracy >= 70:
	case accuracy >= 50:
		next = current - 1
	default:
		next = current - 2
	}
	return Clamp(next)
}

// Predict guesses the next difficulty from a tentative accuracy, for prefetching.
func Predict(current int, tentativeAccuracy float64) int {
	switch {
	case tentativeAccuracy >= 90:
		return Clamp(current + 1)
	case tentativeAccuracy >= 70:
		return Clamp(current)
	default:
		return Clamp(current - 1)
	}
}

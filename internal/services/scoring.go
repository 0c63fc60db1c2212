package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vytor/lingorun/internal/models"
)

const (
	// PassAccuracy advances the session and keeps the sentence out of review.
	PassAccuracy = 80.0
	// SessionBonusCredits is granted to the ledger when a session completes.
	SessionBonusCredits = 2

	maxVocabHints = 10
)

// PointsFor maps an accuracy onto its reward tier. Retries always earn 0.
func PointsFor(accuracy float64, retry bool) int {
	if retry {
		return 0
	}
	switch {
	case accuracy >= 90:
		return 20
	case accuracy >= 80:
		return 15
	case accuracy >= 70:
		return 10
	case accuracy >= 60:
		return 5
	default:
		return 2
	}
}

type errorCategory int

const (
	categoryOther errorCategory = iota
	categoryGrammar
	categoryWordChoice
	categoryNaturalness
)

func classifyError(errType string) errorCategory {
	t := strings.ToLower(errType)
	switch {
	case strings.Contains(t, "grammar"), strings.Contains(t, "tense"),
		strings.Contains(t, "article"), strings.Contains(t, "preposition"):
		return categoryGrammar
	case strings.Contains(t, "word"), strings.Contains(t, "vocabulary"):
		return categoryWordChoice
	case strings.Contains(t, "natural"), strings.Contains(t, "flow"):
		return categoryNaturalness
	}
	return categoryOther
}

// buildSummary aggregates the structured errors of every non-skipped attempt.
func buildSummary(session *models.PracticeSession) models.SessionSummary {
	summary := models.SessionSummary{
		SessionID:          session.ID,
		TotalSentences:     len(session.Sentences()),
		CompletedSentences: session.CompletedSentences(),
		AverageAccuracy:    session.AverageAccuracy(),
		TotalPoints:        session.TotalPoints,
		Errors:             models.SummaryErrors{},
	}

	for _, a := range session.Attempts {
		if a.Skipped {
			continue
		}
		submitted := ""
		if a.SubmittedText != nil {
			submitted = *a.SubmittedText
		}
		for _, e := range a.Feedback.Errors {
			if e.Type == "" {
				continue
			}
			switch classifyError(e.Type) {
			case categoryGrammar:
				summary.GrammarErrors++
			case categoryWordChoice:
				summary.WordChoiceErrors++
			case categoryNaturalness:
				summary.NaturalnessErrors++
			}
			summary.TotalErrors++
			summary.Errors = append(summary.Errors, models.SummaryError{
				SentenceIndex: a.SentenceIndex,
				Original:      a.OriginalSentence,
				Submitted:     submitted,
				Type:          e.Type,
				QuickFix:      e.QuickFix,
				Correction:    e.Correction,
			})
		}
	}
	return summary
}

// errorSummary renders per-category error counts for the generator. It is
// empty when the learner made no classified errors.
func errorSummary(attempts []models.Attempt) string {
	var grammar, word, natural int
	for _, a := range attempts {
		if a.Skipped {
			continue
		}
		for _, e := range a.Feedback.Errors {
			switch classifyError(e.Type) {
			case categoryGrammar:
				grammar++
			case categoryWordChoice:
				word++
			case categoryNaturalness:
				natural++
			}
		}
	}
	if grammar+word+natural == 0 {
		return ""
	}
	return fmt.Sprintf("grammar=%d word_choice=%d naturalness=%d", grammar, word, natural)
}

// vocabHint lists distinct word-choice corrections, capped at maxVocabHints.
func vocabHint(attempts []models.Attempt) string {
	seen := make(map[string]bool)
	var words []string
	for _, a := range attempts {
		for _, e := range a.Feedback.Errors {
			if classifyError(e.Type) != categoryWordChoice {
				continue
			}
			w := strings.TrimSpace(e.Correction)
			if w == "" || seen[strings.ToLower(w)] {
				continue
			}
			seen[strings.ToLower(w)] = true
			words = append(words, w)
			if len(words) == maxVocabHints {
				return strings.Join(words, ", ")
			}
		}
	}
	return strings.Join(words, ", ")
}

// priorTranslations returns the reference translations of non-skipped
// attempts, ordered by sentence index, for tense consistency.
func priorTranslations(attempts []models.Attempt) []string {
	ordered := make([]models.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Skipped || a.Feedback.CorrectTranslation == "" {
			continue
		}
		ordered = append(ordered, a)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SentenceIndex < ordered[j].SentenceIndex })

	out := make([]string, len(ordered))
	for i, a := range ordered {
		out[i] = a.Feedback.CorrectTranslation
	}
	return out
}

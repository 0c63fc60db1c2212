package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/lingorun/internal/models"
)

func TestPointsFor(t *testing.T) {
	tests := []struct {
		accuracy float64
		retry    bool
		want     int
	}{
		{100, false, 20},
		{90, false, 20},
		{89.99, false, 15},
		{80, false, 15},
		{70, false, 10},
		{60, false, 5},
		{59.9, false, 2},
		{0, false, 2},
		{100, true, 0},
		{10, true, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PointsFor(tt.accuracy, tt.retry), "accuracy=%v retry=%v", tt.accuracy, tt.retry)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, categoryGrammar, classifyError("GRAMMAR"))
	assert.Equal(t, categoryGrammar, classifyError("verb tense"))
	assert.Equal(t, categoryGrammar, classifyError("Article"))
	assert.Equal(t, categoryGrammar, classifyError("preposition"))
	assert.Equal(t, categoryWordChoice, classifyError("WORD_CHOICE"))
	assert.Equal(t, categoryWordChoice, classifyError("vocabulary"))
	assert.Equal(t, categoryNaturalness, classifyError("NATURALNESS"))
	assert.Equal(t, categoryNaturalness, classifyError("flow"))
	assert.Equal(t, categoryOther, classifyError("spelling"))
}

func TestErrorSummaryAndVocabHint(t *testing.T) {
	attempts := []models.Attempt{
		{Feedback: models.Feedback{Errors: []models.TranslationError{
			{Type: "GRAMMAR"}, {Type: "WORD_CHOICE", Correction: "market"}, {Type: "vocabulary", Correction: "Market"},
		}}},
		{Skipped: true, Feedback: models.Feedback{Errors: []models.TranslationError{{Type: "GRAMMAR"}}}},
		{Feedback: models.Feedback{Errors: []models.TranslationError{{Type: "flow"}, {Type: "word", Correction: " vendor "}}}},
	}

	assert.Equal(t, "grammar=1 word_choice=2 naturalness=1", errorSummary(attempts))
	assert.Equal(t, "market, vendor", vocabHint(attempts))
	assert.Empty(t, errorSummary([]models.Attempt{{Feedback: models.Feedback{Errors: []models.TranslationError{{Type: "spelling"}}}}}))
}

func TestVocabHint_Capped(t *testing.T) {
	var errs []models.TranslationError
	for _, w := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		errs = append(errs, models.TranslationError{Type: "WORD_CHOICE", Correction: w})
	}
	hint := vocabHint([]models.Attempt{{Feedback: models.Feedback{Errors: errs}}})
	assert.Equal(t, "a, b, c, d, e, f, g, h, i, j", hint)
}

func TestPriorTranslations_OrderedAndFiltered(t *testing.T) {
	attempts := []models.Attempt{
		{SentenceIndex: 2, Feedback: models.Feedback{CorrectTranslation: "third"}},
		{SentenceIndex: 0, Feedback: models.Feedback{CorrectTranslation: "first"}},
		{SentenceIndex: 1, Skipped: true},
		{SentenceIndex: 1, Feedback: models.Feedback{}},
	}
	assert.Equal(t, []string{"first", "third"}, priorTranslations(attempts))
}

func TestBuildSummary(t *testing.T) {
	text := "I go"
	session := &models.PracticeSession{
		ID:               7,
		ParagraphContent: "Một. Hai.",
		TotalPoints:      22,
		Attempts: []models.Attempt{
			{SentenceIndex: 0, OriginalSentence: "Một.", SubmittedText: &text, Accuracy: 70, Feedback: models.Feedback{
				Errors: []models.TranslationError{{Type: "tense", QuickFix: "go -> went", Correction: "went"}, {Type: ""}},
			}},
			{SentenceIndex: 1, OriginalSentence: "Hai.", Skipped: true},
		},
	}

	summary := buildSummary(session)
	assert.Equal(t, int64(7), summary.SessionID)
	assert.Equal(t, 2, summary.TotalSentences)
	assert.Equal(t, 2, summary.CompletedSentences)
	assert.Equal(t, 35.0, summary.AverageAccuracy)
	assert.Equal(t, 1, summary.TotalErrors)
	assert.Equal(t, 1, summary.GrammarErrors)
	assert.Equal(t, models.SummaryErrors{{SentenceIndex: 0, Original: "Một.", Submitted: "I go", Type: "tense", QuickFix: "go -> went", Correction: "went"}}, summary.Errors)
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(1)
			defer unlock()

			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Empty(t, k.locks)
}

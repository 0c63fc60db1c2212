package models

// DefaultLanguage is used when a request names no target language.
const DefaultLanguage = "en"

// GenerationRequest asks the generator for a new paragraph. The optional hint
// fields personalize the text for one learner.
type GenerationRequest struct {
	Difficulty   int    `json:"difficulty"`
	Language     string `json:"language"`
	ErrorSummary string `json:"error_summary,omitempty"`
	VocabHint    string `json:"vocab_hint,omitempty"`
	PreviousText string `json:"previous_text,omitempty"`
}

// Personalized reports whether any learner-specific hint is present.
func (r GenerationRequest) Personalized() bool {
	return r.ErrorSummary != "" || r.VocabHint != "" || r.PreviousText != ""
}

// EvaluationRequest asks the evaluator to score one translated sentence.
type EvaluationRequest struct {
	Original          string   `json:"original"`
	Submission        string   `json:"submission"`
	ParagraphContext  string   `json:"paragraph_context,omitempty"`
	PriorTranslations []string `json:"prior_translations,omitempty"`
}

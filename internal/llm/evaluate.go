package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
)

const (
	evaluateMaxTokens   = 1500
	evaluateTemperature = 0.2
)

type evaluationPayload struct {
	Scores struct {
		Grammar     int `json:"grammarScore"`
		WordChoice  int `json:"wordChoiceScore"`
		Naturalness int `json:"naturalnessScore"`
	} `json:"scores"`
	Errors []struct {
		Type        string `json:"type"`
		Position    string `json:"position"`
		Issue       string `json:"issue"`
		Correction  string `json:"correction"`
		Explanation string `json:"explanation"`
		QuickFix    string `json:"quickFix"`
		Category    string `json:"category"`
	} `json:"errors"`
	Suggestions        []string `json:"suggestions"`
	CorrectTranslation string   `json:"correctTranslation"`
}

// Evaluate scores one translated sentence. Transport failures and malformed
// replies are returned as errors for the caller to absorb.
func (c *Client) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.Feedback, error) {
	log := logger.FromContext(ctx).WithPrefix("llm")

	content, err := c.complete(ctx, evaluationPrompt(req), evaluateMaxTokens, evaluateTemperature)
	if err != nil {
		return nil, err
	}

	fb, err := parseEvaluation(content)
	if err != nil {
		log.Warn("malformed evaluation reply: %v", err)
		return nil, err
	}

	if normalize(req.Submission) != "" && normalize(req.Submission) == normalize(fb.CorrectTranslation) {
		log.Debug("submission matches reference translation")
		return perfectFeedback(req.Submission), nil
	}
	return fb, nil
}

func evaluationPrompt(req models.EvaluationRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a language teacher evaluating a learner's translation of one sentence.\n")
	if req.ParagraphContext != "" {
		sb.WriteString("\nPARAGRAPH CONTEXT (for reference only):\n")
		sb.WriteString(req.ParagraphContext)
		sb.WriteString("\n")
	}
	if len(req.PriorTranslations) > 0 {
		sb.WriteString("\nPREVIOUS SENTENCES TRANSLATED BY THE LEARNER:\n")
		for i, t := range req.PriorTranslations {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
		}
	}
	fmt.Fprintf(&sb, "\nOriginal sentence: %s\nLearner's translation: %s\n", req.Original, req.Submission)
	sb.WriteString(`
Evaluate ONLY the translation of the original sentence above.
Respond with ONLY valid JSON, no markdown:
{
  "scores": {"grammarScore": <0-100>, "wordChoiceScore": <0-100>, "naturalnessScore": <0-100>},
  "errors": [{"type": "GRAMMAR|WORD_CHOICE|NATURALNESS", "position": "...", "issue": "...", "correction": "...", "explanation": "...", "quickFix": "..."}],
  "suggestions": ["..."],
  "correctTranslation": "..."
}`)
	return sb.String()
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseEvaluation(content string) (*models.Feedback, error) {
	var p evaluationPayload
	if err := json.Unmarshal([]byte(stripFence(content)), &p); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}

	fb := &models.Feedback{
		Scores: models.ScoreBreakdown{
			Grammar:     clampScore(p.Scores.Grammar),
			WordChoice:  clampScore(p.Scores.WordChoice),
			Naturalness: clampScore(p.Scores.Naturalness),
		},
		Errors:             make([]models.TranslationError, 0, len(p.Errors)),
		Suggestions:        p.Suggestions,
		CorrectTranslation: strings.TrimSpace(p.CorrectTranslation),
	}
	for _, e := range p.Errors {
		fb.Errors = append(fb.Errors, models.TranslationError{
			Type:        e.Type,
			Position:    e.Position,
			Issue:       e.Issue,
			Correction:  e.Correction,
			Explanation: e.Explanation,
			QuickFix:    e.QuickFix,
			Category:    e.Category,
		})
	}
	return fb, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	nonWordChar = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// normalize lowercases, collapses whitespace and drops punctuation.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spaceRun.ReplaceAllString(s, " ")
	return nonWordChar.ReplaceAllString(s, "")
}

func perfectFeedback(submission string) *models.Feedback {
	return &models.Feedback{
		Scores:             models.ScoreBreakdown{Grammar: 100, WordChoice: 100, Naturalness: 100},
		Errors:             []models.TranslationError{},
		Suggestions:        []string{"Perfect translation!"},
		CorrectTranslation: submission,
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
)

const (
	generateMaxTokens   = 600
	generateTemperature = 0.8
)

// Generate writes a practice paragraph for the requested difficulty.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	log := logger.FromContext(ctx).WithPrefix("llm").WithField("difficulty", req.Difficulty)

	content, err := c.complete(ctx, generationPrompt(req), generateMaxTokens, generateTemperature)
	if err != nil {
		return "", err
	}

	text := strings.Trim(stripFence(content), "\"' \n\t")
	if text == "" {
		return "", fmt.Errorf("generator returned empty paragraph")
	}
	log.Debug("generated paragraph with %d sentences", len(models.SplitSentences(text)))
	return text, nil
}

func generationPrompt(req models.GenerationRequest) string {
	lang := req.Language
	if lang == "" {
		lang = models.DefaultLanguage
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write one short paragraph (4-6 sentences) for a learner to translate into the language with code %q.\n", lang)
	fmt.Fprintf(&sb, "Difficulty: %d on a scale of 1 (beginner) to 10 (advanced), bucket %q.\n", req.Difficulty, models.BucketForDifficulty(req.Difficulty))
	if req.ErrorSummary != "" {
		fmt.Fprintf(&sb, "The learner recently made these mistakes (%s); include structures that practise them.\n", req.ErrorSummary)
	}
	if req.VocabHint != "" {
		fmt.Fprintf(&sb, "Reuse some of this vocabulary: %s.\n", req.VocabHint)
	}
	if req.PreviousText != "" {
		fmt.Fprintf(&sb, "Continue naturally from the previous paragraph:\n%s\n", req.PreviousText)
	}
	sb.WriteString("Each sentence must end with '.', '!' or '?'. Reply with the paragraph text only.")
	return sb.String()
}

package models

import (
	"strings"
	"time"
	"unicode"
)

// Difficulty buckets used by the static paragraph pool.
const (
	BucketEasy   = "easy"
	BucketMedium = "medium"
	BucketHard   = "hard"
)

// Paragraph sources.
const (
	SourceSeed      = "seed"
	SourceGenerated = "generated"
)

// MinDifficulty and MaxDifficulty bound the adaptive difficulty scale.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

type Paragraph struct {
	ID         int64     `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	Difficulty string    `json:"difficulty" db:"difficulty"`
	Topic      string    `json:"topic" db:"topic"`
	Language   string    `json:"language" db:"language"`
	Source     string    `json:"source" db:"source"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Sentences returns the paragraph content split into sentences.
func (p Paragraph) Sentences() []string {
	return SplitSentences(p.Content)
}

// ValidBucket reports whether b is one of the pool buckets.
func ValidBucket(b string) bool {
	switch b {
	case BucketEasy, BucketMedium, BucketHard:
		return true
	}
	return false
}

// BucketForDifficulty maps a 1-10 difficulty level onto a pool bucket.
func BucketForDifficulty(level int) string {
	switch {
	case level <= 3:
		return BucketEasy
	case level <= 6:
		return BucketMedium
	default:
		return BucketHard
	}
}

// SplitSentences breaks text after '.', '!' or '?' when followed by whitespace.
// Fragments are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
)

// NewTestDB opens an in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	require.NoError(t, err)
	return d
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// SeedParagraph inserts a seed paragraph and returns its id.
func SeedParagraph(t *testing.T, repo repository.ParagraphRepository, title, content, bucket string) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), models.Paragraph{
		Title:      title,
		Content:    content,
		Difficulty: bucket,
		Language:   models.DefaultLanguage,
		Source:     models.SourceSeed,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

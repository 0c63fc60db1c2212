package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	d, err := Open(":memory:")
	require.NoError(t, err)
	defer d.Close()

	versions, err := d.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_paragraphs_sessions.sql", "0002_runs.sql", "0003_reviews_ledger.sql"}, versions)

	require.NoError(t, d.applyMigrations(ctx))
	again, err := d.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, versions, again)

	var tables int
	require.NoError(t, d.GetContext(ctx, &tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('paragraphs', 'practice_sessions', 'random_runs', 'review_cards')`))
	assert.Equal(t, 4, tables)
}

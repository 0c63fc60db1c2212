package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/lingorun/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"warning", logger.WARN},
		{" error ", logger.ERROR},
		{"nonsense", logger.INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(logger.WARN), logger.WithColors(false))

	log.Info("hidden")
	log.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 1")
	assert.Contains(t, out, "WARN")
}

func TestLogger_FieldsSortedAndPrefixed(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithColors(false)).
		WithPrefix("cache").
		WithFields(map[string]any{"zeta": 1, "alpha": "a"})

	log.Info("hello")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[cache]")
	assert.True(t, strings.HasSuffix(line, "hello alpha=a zeta=1"), line)
}

func TestLogger_DerivedDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := logger.New(logger.WithOutput(&buf), logger.WithColors(false))
	_ = parent.WithField("user_id", 7)

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "user_id")
}

func TestContextRoundTrip(t *testing.T) {
	log := logger.Discard().WithField("request_id", "abc")
	ctx := logger.NewContext(context.Background(), log)

	assert.Same(t, log, logger.FromContext(ctx))
	assert.Same(t, logger.Default(), logger.FromContext(context.Background()))
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON)).
		WithPrefix("ratelimit").
		WithField("user_id", 7)

	log.Warn("denied %s", "hourly")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "denied hourly", rec["msg"])
	assert.Equal(t, "ratelimit", rec["component"])
	assert.Equal(t, float64(7), rec["user_id"])
	assert.NotContains(t, buf.String(), "\033[")
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, logger.FormatJSON, logger.ParseFormat(" JSON "))
	assert.Equal(t, logger.FormatText, logger.ParseFormat("text"))
	assert.Equal(t, logger.FormatText, logger.ParseFormat(""))
}

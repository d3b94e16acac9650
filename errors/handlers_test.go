package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	LogError(logger, NewValidationError("req-1", "Text cannot be empty", nil), "req-1")
	LogError(logger, NewProviderError("req-2", "Error with Gemini API: down", errors.New("down")), "req-2")
	LogError(logger, errors.New("plain"), "req-3")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "unexpected error", entries[2].Message)
}

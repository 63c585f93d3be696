package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/domain"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelError, levelFromString("ERROR"))
	assert.Equal(t, slog.LevelWarn, levelFromString("warning"))
	assert.Equal(t, slog.LevelDebug, levelFromString("debug"))
	assert.Equal(t, slog.LevelInfo, levelFromString(""))
}

func TestForEnvelope_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", true)

	env := domain.Envelope{UserID: "42", CorrelationID: "corr-1"}
	ForEnvelope(logger, domain.StageClaims, env).Info("extracted claims")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "corr-1", line["correlation_id"])
	assert.Equal(t, "42", line["user_id"])
	assert.Equal(t, "claims", line["stage"])
}

func TestForEnvelope_StageKeyAppearsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", false)

	ForEnvelope(logger, domain.StageWriter, domain.Envelope{UserID: "42", CorrelationID: "corr-1"}).Info("stored threats")

	assert.Equal(t, 1, strings.Count(buf.String(), "stage="))
	assert.Contains(t, buf.String(), "stage=writer")
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	logger := Discard()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

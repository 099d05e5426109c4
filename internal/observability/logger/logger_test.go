package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

// TestPurpose: Validates that the fanout handler delivers a record to every enabled sink.
// Scope: Unit Test
// Expected: Both buffers receive the record; the sink above the record level receives nothing.
// Test Case ID: LOG-01
func TestFanoutHandler_DeliversToEnabledHandlers(t *testing.T) {
	var a, b, quiet bytes.Buffer
	h := NewFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		&TraceContextHandler{Handler: slog.NewJSONHandler(&b, nil)},
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	log := slog.New(h).With(Schema("acme"))
	log.InfoContext(context.Background(), "tenant resolved", Host("acme.localhost"))

	for _, buf := range []*bytes.Buffer{&a, &b} {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "tenant resolved", rec["msg"])
		assert.Equal(t, "acme", rec["schema"])
		assert.Equal(t, "acme.localhost", rec["host"])
	}
	assert.Zero(t, quiet.Len())
}

func TestErrorAttr_Nil(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
}

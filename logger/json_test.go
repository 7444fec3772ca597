package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	log := &jsonLogger{
		metadata: make(map[string]interface{}),
		out:      &buf,
		logLevel: LevelDebug,
		ts:       &ts,
	}

	log.WithPrefix("[cache]").With(map[string]interface{}{"key": "meetings_feed"}).
		Info("refreshed %d items", 4)

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "refreshed 4 items", entry.Message)
	assert.Equal(t, "INFO", entry.Severity)
	assert.Equal(t, "[cache]", entry.Component)
	assert.Equal(t, "meetings_feed", entry.Metadata["key"])
	assert.True(t, entry.Timestamp.Equal(ts))
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := &jsonLogger{
		metadata: make(map[string]interface{}),
		out:      &buf,
		logLevel: LevelWarn,
	}
	log.Debug("dropped")
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestTestLoggerSharesEntriesAcrossClones(t *testing.T) {
	log := NewTestLogger()
	derived := log.WithPrefix("[x]").With(map[string]interface{}{"a": 1})
	derived.Error("boom")
	require.Len(t, log.Entries(), 1)
	assert.Equal(t, "ERROR", log.Entries()[0].Severity)
	assert.Equal(t, "boom", log.Entries()[0].Message)
}

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv("SIGNVIEW_LOG_LEVEL", "debug")
	assert.Equal(t, LevelDebug, GetLevelFromEnv())
	t.Setenv("SIGNVIEW_LOG_LEVEL", "nonsense")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

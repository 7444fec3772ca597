package logger

import (
	"fmt"
	"sync"
)

// TestLogEntry is a captured log call
type TestLogEntry struct {
	Severity string
	Message  string
	Metadata map[string]interface{}
}

type testLogStore struct {
	mu      sync.Mutex
	entries []TestLogEntry
}

// TestLogger is a Logger implementation which captures entries for
// assertions in unit tests. Fatal records the entry instead of exiting.
// Loggers derived via With/WithPrefix share the same entry store.
type TestLogger struct {
	store    *testLogStore
	metadata map[string]interface{}
}

var _ Logger = (*TestLogger)(nil)

func NewTestLogger() *TestLogger {
	return &TestLogger{
		store:    &testLogStore{},
		metadata: make(map[string]interface{}),
	}
}

// Entries returns a copy of all captured log entries.
func (c *TestLogger) Entries() []TestLogEntry {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	out := make([]TestLogEntry, len(c.store.entries))
	copy(out, c.store.entries)
	return out
}

func (c *TestLogger) record(level LogLevel, msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.entries = append(c.store.entries, TestLogEntry{
		Severity: levelName(level),
		Message:  msg,
		Metadata: c.metadata,
	})
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	md := make(map[string]interface{})
	for k, v := range c.metadata {
		md[k] = v
	}
	for k, v := range metadata {
		md[k] = v
	}
	return &TestLogger{store: c.store, metadata: md}
}

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return &TestLogger{store: c.store, metadata: c.metadata}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool { return true }

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.record(LevelTrace, msg, args...) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.record(LevelDebug, msg, args...) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.record(LevelInfo, msg, args...) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.record(LevelWarn, msg, args...) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.record(LevelError, msg, args...) }
func (c *TestLogger) Fatal(msg string, args ...interface{}) { c.record(LevelError, msg, args...) }

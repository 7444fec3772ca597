package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// JSONLogEntry defines a log entry in the structured format expected by most
// log collectors.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

type jsonLogger struct {
	component string
	metadata  map[string]interface{}
	out       io.Writer
	logLevel  LogLevel
	ts        *time.Time // for unit testing
}

var _ Logger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	metadata := make(map[string]interface{})
	for k, v := range c.metadata {
		metadata[k] = v
	}
	return &jsonLogger{
		component: c.component,
		metadata:  metadata,
		out:       c.out,
		logLevel:  c.logLevel,
		ts:        c.ts,
	}
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if l.component == "" {
		l.component = prefix
	} else if !strings.Contains(l.component, prefix) {
		l.component = l.component + " " + prefix
	}
	return l
}

// With will return a new logger using metadata as the base context
func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	for k, v := range metadata {
		l.metadata[k] = v
	}
	if comp, ok := l.metadata["component"].(string); ok {
		l.component = comp
		delete(l.metadata, "component")
	}
	return l
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel
}

func (c *jsonLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < c.logLevel {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Timestamp: time.Now(),
		Message:   msg,
		Severity:  levelName(level),
		Metadata:  c.metadata,
		Component: c.component,
	}
	if c.ts != nil {
		entry.Timestamp = *c.ts
	}
	buf, err := json.Marshal(entry)
	if err != nil {
		log.Printf("json.Marshal: %v", err)
		return
	}
	buf = append(buf, '\n')
	if _, err := c.out.Write(buf); err != nil {
		log.Printf("log write: %v", err)
	}
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, msg, args...) }
func (c *jsonLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, msg, args...) }
func (c *jsonLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, msg, args...) }
func (c *jsonLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, msg, args...) }
func (c *jsonLogger) Error(msg string, args ...interface{}) { c.log(LevelError, msg, args...) }

func (c *jsonLogger) Fatal(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
	os.Exit(1)
}

// NewJSONLogger returns a new Logger instance which will log structured JSON
// lines to stdout
func NewJSONLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &jsonLogger{
		metadata: make(map[string]interface{}),
		out:      os.Stdout,
		logLevel: level,
	}
}

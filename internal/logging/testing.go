// internal/logging/testing.go
package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
// Entries bypass the redacting encoder, so fields appear as logged.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger records every entry, including trace level.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

func (t *TestLogger) find(level zapcore.Level, snippet string) (observer.LoggedEntry, bool) {
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return e, true
		}
	}
	return observer.LoggedEntry{}, false
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if _, ok := t.find(level, msgContains); !ok {
		tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
	}
}

// AssertNotLogged fails tb if an entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if e, ok := t.find(level, msgContains); ok {
		tb.Errorf("unexpected log at %v: %q", level, e.Message)
	}
}

// AssertField fails tb unless some entry containing msg carries key=expected.
// Integer fields compare as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, e := range t.observed.FilterMessageSnippet(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertNoSecrets fails tb if a string field named like a default redaction
// key was logged without going through Secret or RedactedString.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	keys := NewDefaultConfig().Redaction.Fields

	for _, e := range t.observed.All() {
		for _, f := range e.Context {
			if f.Type != zapcore.StringType || f.String == "" || strings.HasPrefix(f.String, "[REDACTED") {
				continue
			}
			name := strings.ToLower(f.Key)
			for _, k := range keys {
				if strings.Contains(name, k) {
					tb.Errorf("sensitive field %q not redacted in %q", f.Key, e.Message)
					break
				}
			}
		}
	}
}

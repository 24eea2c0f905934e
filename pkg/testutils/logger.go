package testutils

import (
	"sync"

	"github.com/livekit/protocol/logger"
)

type LogEntry struct {
	Level         string
	Name          string
	Message       string
	KeysAndValues []interface{}
}

// RecordingLogger keeps every entry logged through it and the loggers derived from it.
type RecordingLogger struct {
	name    string
	entries *logEntries
}

type logEntries struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ logger.Logger = (*RecordingLogger)(nil)

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{entries: &logEntries{}}
}

func (l *RecordingLogger) Entries() []LogEntry {
	l.entries.mu.Lock()
	defer l.entries.mu.Unlock()
	return append([]LogEntry(nil), l.entries.entries...)
}

// Messages returns the messages logged at level, in order.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func (l *RecordingLogger) record(level string, msg string, keysAndValues []interface{}) {
	l.entries.mu.Lock()
	defer l.entries.mu.Unlock()
	l.entries.entries = append(l.entries.entries, LogEntry{
		Level:         level,
		Name:          l.name,
		Message:       msg,
		KeysAndValues: keysAndValues,
	})
}

func (l *RecordingLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.record("debug", msg, keysAndValues)
}

func (l *RecordingLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.record("info", msg, keysAndValues)
}

func (l *RecordingLogger) Warnw(msg string, err error, keysAndValues ...interface{}) {
	l.record("warn", msg, append(keysAndValues, "error", err))
}

func (l *RecordingLogger) Errorw(msg string, err error, keysAndValues ...interface{}) {
	l.record("error", msg, append(keysAndValues, "error", err))
}

func (l *RecordingLogger) WithValues(_ ...interface{}) logger.Logger {
	return l
}

func (l *RecordingLogger) WithName(name string) logger.Logger {
	n := name
	if l.name != "" {
		n = l.name + "." + name
	}
	return &RecordingLogger{name: n, entries: l.entries}
}

func (l *RecordingLogger) WithCallDepth(_ int) logger.Logger {
	return l
}

func (l *RecordingLogger) WithItemSampler() logger.Logger {
	return l
}

func (l *RecordingLogger) WithoutSampler() logger.Logger {
	return l
}

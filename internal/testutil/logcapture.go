package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LogCapture captures slog JSON output for assertions on log records.
type LogCapture struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	logger *slog.Logger
}

// LogEntry is one parsed log record.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewLogCapture creates a capture at debug level.
func NewLogCapture() *LogCapture {
	lc := &LogCapture{}
	lc.logger = slog.New(slog.NewJSONHandler(lockedWriter{lc}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return lc
}

type lockedWriter struct{ lc *LogCapture }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.lc.mu.Lock()
	defer w.lc.mu.Unlock()
	return w.lc.buffer.Write(p)
}

// Logger returns the slog.Logger that writes to this capture.
func (lc *LogCapture) Logger() *slog.Logger {
	return lc.logger
}

// Entries parses every captured record.
func (lc *LogCapture) Entries() []LogEntry {
	lc.mu.Lock()
	data := append([]byte(nil), lc.buffer.Bytes()...)
	lc.mu.Unlock()

	var entries []LogEntry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		e := LogEntry{Fields: make(map[string]interface{})}
		for k, v := range raw {
			switch k {
			case "level":
				e.Level, _ = v.(string)
			case "msg":
				e.Message, _ = v.(string)
			case "time":
			default:
				e.Fields[k] = v
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// Find returns entries matching the level (empty matches all) whose message
// contains msgSubstring.
func (lc *LogCapture) Find(level string, msgSubstring string) []LogEntry {
	var results []LogEntry
	for _, entry := range lc.Entries() {
		if (level == "" || strings.EqualFold(entry.Level, level)) &&
			strings.Contains(entry.Message, msgSubstring) {
			results = append(results, entry)
		}
	}
	return results
}

// FindByField returns entries containing the specified field value.
func (lc *LogCapture) FindByField(key string, value interface{}) []LogEntry {
	var results []LogEntry
	for _, entry := range lc.Entries() {
		if v, ok := entry.Fields[key]; ok && fmt.Sprint(v) == fmt.Sprint(value) {
			results = append(results, entry)
		}
	}
	return results
}

// HasError returns true if any ERROR level entries were captured.
func (lc *LogCapture) HasError() bool {
	return len(lc.Find("error", "")) > 0
}

// Clear drops everything captured so far.
func (lc *LogCapture) Clear() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.buffer.Reset()
}

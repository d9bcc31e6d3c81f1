// Package transcript appends conversation lines to one text file per
// conversation.
package transcript

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	fileTimeLayout = "20060102-150405"
	lineTimeLayout = "2006-01-02 15:04:05"
)

// ErrDisabled is returned by Append on a disabled sink.
var ErrDisabled = errors.New("transcript sink disabled")

// Line is one utterance.
type Line struct {
	Time    time.Time
	Speaker string
	Text    string
}

// String formats the line as "[2006-01-02 15:04:05] Speaker: text".
func (l Line) String() string {
	text := strings.Join(strings.Fields(l.Text), " ")
	return fmt.Sprintf("[%s] %s: %s", l.Time.Format(lineTimeLayout), l.Speaker, text)
}

// Sink owns the transcript directory. Each conversation ID maps to the file
// created on its first Append until Forget or Prune releases it.
type Sink struct {
	dir     string
	enabled bool
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	files map[string]*openFile
}

type openFile struct {
	path     string
	lastUsed time.Time
}

// NewSink creates a sink writing under dir. A disabled sink drops lines.
func NewSink(dir string, enabled bool, logger *slog.Logger) *Sink {
	return &Sink{
		dir:     dir,
		enabled: enabled,
		now:     time.Now,
		logger:  logger.With("component", "transcript"),
		files:   make(map[string]*openFile),
	}
}

// Enabled reports whether lines are written.
func (s *Sink) Enabled() bool {
	return s != nil && s.enabled
}

// Append writes lines to the conversation's file, creating it on demand.
// Lines with a zero Time are stamped with the current time.
func (s *Sink) Append(conversationID, title string, lines ...Line) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.files[conversationID]
	if !ok {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create transcript dir: %w", err)
		}
		entry = &openFile{path: filepath.Join(s.dir, FileName(s.now(), title))}
		s.files[conversationID] = entry
		s.logger.Info("transcript started", "conversation_id", conversationID, "path", entry.path)
	}
	entry.lastUsed = s.now()

	f, err := os.OpenFile(entry.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}

	var sb strings.Builder
	for _, l := range lines {
		if l.Time.IsZero() {
			l.Time = s.now()
		}
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	return f.Close()
}

// Path returns the file of a conversation, if it has one.
func (s *Sink) Path(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.files[conversationID]
	if !ok {
		return "", false
	}
	return entry.path, true
}

// Forget drops the conversation's file mapping. A later Append starts a new file.
func (s *Sink) Forget(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, conversationID)
}

// Prune forgets conversations without an Append in the last idle and
// returns how many were dropped. The files stay on disk.
func (s *Sink) Prune(idle time.Duration) int {
	if s == nil {
		return 0
	}
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, entry := range s.files {
		if entry.lastUsed.Before(cutoff) {
			delete(s.files, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of conversations with an open file mapping.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// FileName returns "<YYYYMMDD-HHMMSS>_<sanitized_title>.txt".
func FileName(t time.Time, title string) string {
	return t.Format(fileTimeLayout) + "_" + SanitizeTitle(title) + ".txt"
}

// SanitizeTitle lowercases title and replaces every run of characters other
// than ASCII letters and digits with one underscore.
func SanitizeTitle(title string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if sb.Len() == 0 {
		return "conversation"
	}
	return sb.String()
}

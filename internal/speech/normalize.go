// Package speech prepares dialogue text for speech synthesis and talks to
// the synthesis provider through the Synthesizer boundary.
package speech

import (
	"strings"
	"unicode"
)

// maxActionWords is the longest leading *stage direction* that is read as
// a separate action segment.
const maxActionWords = 10

var dashReplacer = strings.NewReplacer(
	"—", "-", // em dash
	"–", "-", // en dash
	"−", "-", // minus sign
	"‒", "-", // figure dash
	"―", "-", // horizontal bar
)

// Text is dialogue text cleaned for synthesis.
type Text struct {
	// Action is the cleaned leading stage direction, empty if there was none.
	Action string
	// Body is the cleaned spoken text.
	Body string
	// Lines are the padded sentences, action first.
	Lines []string
}

// String joins the padded sentences with newlines.
func (t Text) String() string {
	return strings.Join(t.Lines, "\n")
}

// Empty reports whether there is nothing to synthesize.
func (t Text) Empty() bool {
	return len(t.Lines) == 0
}

// Normalize expands numbers, isolates a short leading stage direction,
// strips unsupported characters and pads every sentence with one space on
// each side. Normalizing its own output again changes nothing.
func Normalize(text string) Text {
	expanded := ExpandNumbers(text)
	action, body := splitStageDirection(expanded)

	t := Text{
		Action: Clean(action),
		Body:   Clean(body),
	}

	actionSentences := SplitSentences(t.Action)
	if n := len(actionSentences); n > 0 && !endsSentence(actionSentences[n-1]) {
		// keeps the action a sentence of its own when read back
		actionSentences[n-1] += "."
	}

	t.Lines = append(pad(actionSentences), pad(SplitSentences(t.Body))...)
	return t
}

// splitStageDirection separates a leading *...* span of at most
// maxActionWords words from the rest of the text.
func splitStageDirection(text string) (action, body string) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(trimmed, "*") {
		return "", text
	}
	end := strings.IndexByte(trimmed[1:], '*')
	if end < 0 {
		return "", text
	}
	inner := trimmed[1 : 1+end]
	if len(strings.Fields(inner)) > maxActionWords {
		return "", text
	}
	return inner, trimmed[end+2:]
}

// Clean normalizes dashes, drops every character outside
// A-Z a-z space . , ? ! - ' " and collapses whitespace.
func Clean(s string) string {
	s = dashReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case isSpeakable(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isSpeakable(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	}
	switch r {
	case ' ', '.', ',', '?', '!', '-', '\'', '"':
		return true
	}
	return false
}

// SplitSentences splits after '.', '!' or '?' when followed by whitespace.
// Sentences are trimmed and empty ones dropped.
func SplitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if !isTerminal(s[i]) || i+1 >= len(s) || !isSpaceByte(s[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(s[start : i+1]); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if sentence := strings.TrimSpace(s[start:]); sentence != "" {
		out = append(out, sentence)
	}
	return out
}

func pad(sentences []string) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = " " + s + " "
	}
	return out
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func endsSentence(s string) bool {
	return s != "" && isTerminal(s[len(s)-1])
}

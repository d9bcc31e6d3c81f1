package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyOutput is returned for outputs with no text left after cleanup.
	ErrEmptyOutput = errors.New("empty output")
	// ErrDisallowedChar is returned for outputs with a character outside the policy.
	ErrDisallowedChar = errors.New("disallowed character")
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"

	// DefaultMaxRune is the highest code point accepted without an allow-list entry.
	DefaultMaxRune = 255
	// DefaultExtraChars are typographic characters models emit in English prose.
	DefaultExtraChars = "‘’“”—–…"
)

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes every <think>...</think> block. An orphan closing
// tag drops everything before it; an unterminated opening tag drops
// everything after it.
func StripReasoning(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	if i := strings.Index(text, thinkClose); i >= 0 {
		text = text[i+len(thinkClose):]
	}
	if i := strings.Index(text, thinkOpen); i >= 0 {
		text = text[:i]
	}
	return text
}

// CharsetPolicy decides which characters a generated reply may contain.
type CharsetPolicy struct {
	MaxRune rune
	Extra   map[rune]struct{}
}

// NewCharsetPolicy builds a policy accepting runes up to maxRune plus every
// rune of extra. A non-positive maxRune means DefaultMaxRune.
func NewCharsetPolicy(maxRune rune, extra string) CharsetPolicy {
	if maxRune <= 0 {
		maxRune = DefaultMaxRune
	}
	p := CharsetPolicy{MaxRune: maxRune, Extra: make(map[rune]struct{})}
	for _, r := range extra {
		p.Extra[r] = struct{}{}
	}
	return p
}

// DefaultCharsetPolicy accepts Latin-1 plus typographic quotes, dashes and
// the ellipsis.
func DefaultCharsetPolicy() CharsetPolicy {
	return NewCharsetPolicy(DefaultMaxRune, DefaultExtraChars)
}

// Allows reports whether r is accepted.
func (p CharsetPolicy) Allows(r rune) bool {
	limit := p.MaxRune
	if limit <= 0 {
		limit = DefaultMaxRune
	}
	if r <= limit {
		return true
	}
	_, ok := p.Extra[r]
	return ok
}

// Validate returns nil when text is non-empty and every rune is allowed.
func (p CharsetPolicy) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyOutput
	}
	for i, r := range text {
		if !p.Allows(r) {
			return fmt.Errorf("%w %q (U+%04X) at byte %d", ErrDisallowedChar, r, r, i)
		}
	}
	return nil
}

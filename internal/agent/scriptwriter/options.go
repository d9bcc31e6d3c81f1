package scriptwriter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/runixer/heirloom/internal/llm"
)

// OptionCount is the exact number of lines a valid set carries.
const OptionCount = 3

// ErrInvalidOptions is returned when the model output is not a valid set.
var ErrInvalidOptions = errors.New("invalid reply options")

// Options is what the user could say next.
// The zero value is the empty set.
type Options struct {
	Strategy string   `json:"strategy"`
	Options  []string `json:"options"`
}

// Empty reports whether the set has no options.
func (o Options) Empty() bool {
	return len(o.Options) == 0
}

// SchemaName names the response schema sent to providers.
const SchemaName = "reply_options"

// Schema returns the strict response schema for the options pass.
func Schema() *llm.Schema {
	return &llm.Schema{
		Name:   SchemaName,
		Strict: true,
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"strategy": map[string]any{
					"type":        "string",
					"description": "Why these three lines move the conversation on",
				},
				"options": map[string]any{
					"type":        "array",
					"description": "Three lines the visitor could say next: flirty, curious, wildcard",
					"items":       map[string]any{"type": "string"},
					"minItems":    OptionCount,
					"maxItems":    OptionCount,
				},
			},
			"required":             []string{"strategy", "options"},
			"additionalProperties": false,
		},
	}
}

var (
	tagPrefixRe = regexp.MustCompile(`(?i)^(?:[*]*\s*(?:flirty|curious|wildcard)[*]*(?:\s*:|\s+[-–—])|[\[(]\s*(?:flirty|curious|wildcard)\s*[\])]\s*[:\-–—]?)\s*`)
	fenceRe     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Decode parses a schema result. Anything but exactly OptionCount non-empty
// options is ErrInvalidOptions; a partial set is never returned.
func Decode(text string) (Options, error) {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var raw Options
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if len(raw.Options) != OptionCount {
		return Options{}, fmt.Errorf("%w: got %d options, want %d", ErrInvalidOptions, len(raw.Options), OptionCount)
	}

	out := Options{
		Strategy: strings.TrimSpace(raw.Strategy),
		Options:  make([]string, 0, OptionCount),
	}
	for i, o := range raw.Options {
		o = StripTag(o)
		if o == "" {
			return Options{}, fmt.Errorf("%w: option %d is empty", ErrInvalidOptions, i+1)
		}
		out.Options = append(out.Options, o)
	}
	return out, nil
}

// StripTag removes a leaked "flirty:", "curious:" or "wildcard:" label and
// surrounding quotes from one option. A dash counts as a separator only with
// whitespace before it, so "Curious-looking" stays intact.
func StripTag(option string) string {
	option = strings.TrimSpace(option)
	option = tagPrefixRe.ReplaceAllString(option, "")
	option = strings.Trim(option, "\"“” ")
	return strings.TrimSpace(option)
}

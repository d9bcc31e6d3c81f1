package ui

import (
	"encoding/json"
	"html/template"
	"net/url"

	"github.com/runixer/heirloom/internal/agent/prompts"
)

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"pathEscape": url.PathEscape,
		"accent":     prompts.HumanizeAccent,
		// jsString encodes a string as a JavaScript string literal.
		"jsString": func(s string) template.JS {
			encoded, err := json.Marshal(s)
			if err != nil {
				return template.JS(`""`) //nolint:gosec // JSON encoding is safe
			}
			return template.JS(encoded) //nolint:gosec // JSON encoding is safe
		},
	}
}

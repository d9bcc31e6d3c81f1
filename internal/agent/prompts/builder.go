package prompts

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/i18n"
)

// DefaultWordLimit is the reply ceiling when none is configured.
const DefaultWordLimit = 60

const (
	personaKey      = "persona.system_prompt"
	scriptwriterKey = "scriptwriter.system_prompt"
)

// Builder renders system prompts from catalog profiles.
// Rendering has no side effects: equal inputs give byte-identical prompts.
type Builder struct {
	translator *i18n.Translator
	lang       string
	wordLimit  int
}

// NewBuilder creates a Builder for one language.
func NewBuilder(translator *i18n.Translator, lang string, wordLimit int) *Builder {
	if wordLimit <= 0 {
		wordLimit = DefaultWordLimit
	}
	return &Builder{translator: translator, lang: lang, wordLimit: wordLimit}
}

// Language returns the prompt language.
func (b *Builder) Language() string {
	return b.lang
}

// Build renders the persona system prompt.
func (b *Builder) Build(profile *catalog.Profile) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("build persona prompt: nil profile")
	}
	prompt, err := b.translator.GetTemplate(b.lang, personaKey, PersonaParams{
		Title:       profile.Title,
		Type:        lowerType(b.lang, profile.Type),
		Period:      profile.Period,
		Character:   profile.Character,
		Description: profile.Description,
		History:     profile.History,
		Dating:      profile.Dating,
		Maker:       profile.Maker,
		Acquired:    profile.Acquired,
		Dimensions:  profile.Dimensions,
		Accent:      HumanizeAccent(profile.Accent),
		WordLimit:   b.wordLimit,
	})
	if err != nil {
		return "", fmt.Errorf("build persona prompt for %q: %w", profile.Title, err)
	}
	return strings.TrimSpace(prompt), nil
}

// BuildScriptwriter renders the prompt that asks for the user's next lines
// after the persona said reply.
func (b *Builder) BuildScriptwriter(profile *catalog.Profile, reply string) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("build scriptwriter prompt: nil profile")
	}
	prompt, err := b.translator.GetTemplate(b.lang, scriptwriterKey, ScriptwriterParams{
		Title:     profile.Title,
		Type:      lowerType(b.lang, profile.Type),
		Period:    profile.Period,
		Character: profile.Character,
		Reply:     strings.TrimSpace(reply),
	})
	if err != nil {
		return "", fmt.Errorf("build scriptwriter prompt for %q: %w", profile.Title, err)
	}
	return strings.TrimSpace(prompt), nil
}

// HumanizeAccent turns an accent key like "french_male" into "French Male".
func HumanizeAccent(accent string) string {
	accent = strings.TrimSpace(strings.ReplaceAll(accent, "_", " "))
	if accent == "" {
		return ""
	}
	return cases.Title(language.English).String(accent)
}

func lowerType(lang, t string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return cases.Lower(tag).String(strings.TrimSpace(t))
}

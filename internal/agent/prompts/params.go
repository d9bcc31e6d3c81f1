// Package prompts provides typed parameter structs for agent prompt templates.
// These structs are used with i18n.Translator.GetTemplate() so template fields
// are checked at render time instead of being positional Sprintf arguments.
package prompts

// PersonaParams for persona.system_prompt template.
// The persona agent speaks as the museum object itself.
type PersonaParams struct {
	Title       string // Catalog title, e.g. "Rosewood Chair"
	Type        string // Lowercased object type
	Period      string
	Character   string // Behavioral tone descriptor
	Description string
	History     string
	Dating      string
	Maker       string
	Acquired    string
	Dimensions  string
	Accent      string // Human-readable accent, e.g. "French male"
	WordLimit   int    // Hidden reply ceiling
}

// ScriptwriterParams for scriptwriter.system_prompt template.
// The scriptwriter agent proposes the user's next lines.
type ScriptwriterParams struct {
	Title     string
	Type      string
	Period    string
	Character string
	Reply     string // The persona reply being analyzed
}

package ui

import (
	"github.com/runixer/heirloom/internal/catalog"
)

// Labels are the localized strings shared by every page.
type Labels struct {
	Title       string
	Pick        string
	Switch      string
	Send        string
	Placeholder string
	Options     string
	You         string
	Error       string
}

// IndexPage lists the personas.
type IndexPage struct {
	Lang     string
	Labels   Labels
	Personas []*catalog.Profile
}

// ChatPage is the conversation view for one persona.
type ChatPage struct {
	Lang      string
	Labels    Labels
	Persona   *catalog.Profile
	Questions []string
}

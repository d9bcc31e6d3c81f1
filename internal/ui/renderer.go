// Package ui renders the browser pages for talking to the furniture.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	PageIndex = "index.html"
	PageChat  = "chat.html"
)

type Renderer struct {
	layout *template.Template
}

func NewRenderer() (*Renderer, error) {
	// layout.html defines the "layout" template that pages fill via "content".
	layout, err := template.New("layout.html").Funcs(FuncMap()).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	return &Renderer{layout: layout}, nil
}

// Render executes the layout with the given page template.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	// Each render works on a clone so pages never see each other's blocks.
	tmpl, err := r.layout.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone layout: %w", err)
	}

	if _, err := tmpl.ParseFS(templatesFS, "templates/"+page); err != nil {
		return fmt.Errorf("failed to parse page template %s: %w", page, err)
	}

	return tmpl.ExecuteTemplate(w, "layout", data)
}

package web

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/ui"
)

func (s *Server) labels(lang string) ui.Labels {
	t := func(key string) string { return s.translator.Get(lang, key) }
	return ui.Labels{
		Title:       t("ui.title"),
		Pick:        t("ui.pick"),
		Switch:      t("ui.switch"),
		Send:        t("ui.send"),
		Placeholder: t("ui.placeholder"),
		Options:     t("chat.options"),
		You:         t("ui.you"),
		Error:       t("ui.error"),
	}
}

func (s *Server) questions(lang string) []string {
	questions := make([]string, 0, len(QuestionKeys))
	for _, key := range QuestionKeys {
		questions = append(questions, s.translator.Get(lang, key))
	}
	return questions
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	lang := s.language(r)
	s.renderPage(w, ui.PageIndex, ui.IndexPage{
		Lang:     lang,
		Labels:   s.labels(lang),
		Personas: s.dialogue.Catalog().All(),
	})
}

func (s *Server) chatPage(w http.ResponseWriter, r *http.Request) {
	profile, err := s.dialogue.Catalog().FindByTitle(r.PathValue("title"))
	if errors.Is(err, catalog.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	lang := s.language(r)
	s.renderPage(w, ui.PageChat, ui.ChatPage{
		Lang:      lang,
		Labels:    s.labels(lang),
		Persona:   profile,
		Questions: s.questions(lang),
	})
}

// renderPage buffers the page so a template error never sends half a page.
func (s *Server) renderPage(w http.ResponseWriter, page string, data any) {
	var buf bytes.Buffer
	if err := s.pages.Render(&buf, page, data); err != nil {
		s.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/i18n"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a config with sensible test defaults.
func TestConfig() *config.Config {
	cfg := &config.Config{
		Generation: config.GenerationConfig{
			Provider:           "openrouter",
			Model:              "test-model",
			ReplyTemperature:   0.7,
			OptionsTemperature: 0.9,
			MaxRetries:         3,
			HistoryBudget:      2000,
			WordLimit:          60,
		},
		Sessions: config.SessionsConfig{Backend: "memory"},
		Bot:      config.BotConfig{Language: "en"},
	}
	cfg.OpenRouter.APIKey = "test-key"
	return cfg
}

// TestTranslator creates a translator with minimal translations for tests.
// Use t.TempDir() automatically cleaned up after test.
func TestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tmpDir := t.TempDir()
	content := `
persona:
  system_prompt: "You are {{.Title}}, a {{.Type}} from {{.Period}}. Character: {{.Character}}. Accent: {{.Accent}}. Under {{.WordLimit}} words."
scriptwriter:
  system_prompt: "Write three replies to {{.Title}}. Reply: {{.Reply}}"
  user_prompt: "Write them now."
dialogue:
  fallback_reply: "I seem to be lost for words..."
questions:
  origin: "Where do you come from?"
  unique: "What makes you unique?"
  event: "What is the most memorable thing you witnessed?"
ui:
  title: "Talk to the furniture"
  pick: "Pick a piece"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "en.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test locale: %v", err)
	}

	tr, err := i18n.NewTranslatorFromFS(os.DirFS(tmpDir), "en")
	if err != nil {
		t.Fatalf("failed to create test translator: %v", err)
	}
	return tr
}

// TestProfile returns a fully populated persona.
func TestProfile() catalog.Profile {
	return catalog.Profile{
		Title:       "Rosewood Chair",
		Type:        "chair",
		Period:      "Louis XV",
		Character:   "proud and flirtatious",
		Description: "A carved rosewood armchair with cabriole legs.",
		History:     "Made for a merchant's salon on the Herengracht.",
		Dating:      "1700 - 1725",
		Maker:       "Jan van Mekeren",
		Acquired:    "1952",
		Dimensions:  "98 x 64 x 55 cm",
		Accent:      "french_male",
	}
}

// TestCatalog returns a catalog holding TestProfile and a second persona
// with defaulted optional fields.
func TestCatalog() *catalog.Catalog {
	cradle := catalog.Profile{
		Title:       "Oak Cradle",
		Type:        "cradle",
		Period:      "Dutch Golden Age",
		Character:   "gentle",
		Description: "A rocking cradle of carved oak.",
		History:     "Rocked three generations of a Leiden family.",
	}
	return catalog.New(TestLogger(), []catalog.Profile{TestProfile(), cradle})
}

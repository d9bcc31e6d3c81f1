package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_port: "9001"
generation:
  provider: "gemini"
  model: "gemini-2.5-flash"
  max_retries: 5
gemini:
  api_key: "test_api_key"
speech:
  voices:
    pirate: "pirate-voice"
catalog:
  path: "museum.yaml"
database:
  path: "test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.ListenPort)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Generation.Model)
	assert.Equal(t, 5, cfg.Generation.MaxRetries)
	assert.Equal(t, "test_api_key", cfg.Gemini.APIKey)
	assert.Equal(t, "museum.yaml", cfg.Catalog.Path)
	assert.Equal(t, "test.db", cfg.Database.Path)

	// defaults survive the merge
	assert.Equal(t, 0.7, cfg.Generation.ReplyTemperature)
	assert.Equal(t, 0.9, cfg.Generation.OptionsTemperature)
	assert.Equal(t, "pirate-voice", cfg.Speech.Voices["pirate"])
	assert.Equal(t, "french_male", cfg.Speech.Voices["french_male"])
}

func TestLoad_FileNotExists_FallsBackToDefault(t *testing.T) {
	cfg, err := Load("non_existent_file.yaml")
	assert.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "9081", cfg.Server.ListenPort)
}

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.Generation.Provider)
	assert.Equal(t, 3, cfg.Generation.MaxRetries)
	assert.Equal(t, 2000, cfg.Generation.HistoryBudget)
	assert.Equal(t, 60, cfg.Generation.WordLimit)
	assert.Equal(t, 60*time.Second, cfg.Generation.GetCallTimeout())
	assert.Equal(t, 90*time.Second, cfg.Speech.GetTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Sessions.GetTTL())
	assert.Equal(t, 200, cfg.Speech.Fish.ChunkLength)
	assert.Equal(t, 0.7, cfg.Speech.Fish.TopP)
	assert.Equal(t, 1.2, cfg.Speech.Fish.RepetitionPenalty)
	assert.Equal(t, "on", cfg.Speech.Fish.UseMemoryCache)
	assert.Equal(t, "‘’“”—–…", cfg.Generation.ExtraAllowedChars)
	assert.Equal(t, "en", cfg.Bot.Language)
	assert.NotEmpty(t, DefaultConfigBytes())
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "api-key-from-env")
	t.Setenv("HEIRLOOM_SERVER_PORT", "7777")
	t.Setenv("HEIRLOOM_SESSIONS_BACKEND", "memory")

	path := writeConfig(t, `
openrouter:
  api_key: "${TEST_API_KEY}"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "api-key-from-env", cfg.OpenRouter.APIKey)
	assert.Equal(t, "7777", cfg.Server.ListenPort)
	assert.Equal(t, "memory", cfg.Sessions.Backend)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "generation: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadDefault()
	require.NoError(t, err)
	cfg.OpenRouter.APIKey = "key"
	return cfg
}

func TestValidate_DefaultsWithKey(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing openrouter key", func(c *Config) { c.OpenRouter.APIKey = "" }, "openrouter.api_key"},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "llama" }, "generation.provider"},
		{"gemini without key", func(c *Config) { c.Generation.Provider = "gemini" }, "gemini.api_key"},
		{"temperature range", func(c *Config) { c.Generation.ReplyTemperature = 3 }, "reply_temperature"},
		{"zero retries", func(c *Config) { c.Generation.MaxRetries = 0 }, "max_retries"},
		{"zero budget", func(c *Config) { c.Generation.HistoryBudget = 0 }, "history_budget"},
		{"bad call timeout", func(c *Config) { c.Generation.CallTimeout = "soon" }, "call_timeout"},
		{"redis without addr", func(c *Config) { c.Sessions.Backend = "redis" }, "sessions.redis.addr"},
		{"unknown backend", func(c *Config) { c.Sessions.Backend = "mongo" }, "sessions.backend"},
		{"speech provider", func(c *Config) {
			c.Speech.Enabled = true
			c.Speech.Provider = "espeak"
		}, "speech.provider"},
		{"yandex speech creds", func(c *Config) {
			c.Speech.Enabled = true
			c.Speech.Provider = "yandex"
		}, "yandex.api_key"},
		{"yandex stt creds", func(c *Config) { c.Yandex.Enabled = true }, "yandex.folder_id"},
		{"transcript dir", func(c *Config) {
			c.Transcript.Enabled = true
			c.Transcript.Dir = ""
		}, "transcript.dir"},
		{"database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"language", func(c *Config) { c.Bot.Language = "fr" }, "bot.language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.OpenRouter.APIKey = ""
	cfg.Generation.MaxRetries = 0
	cfg.Bot.Language = "xx"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openrouter.api_key")
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "bot.language")
}

func TestGetters_FallBackOnInvalid(t *testing.T) {
	g := GenerationConfig{CallTimeout: "nope"}
	assert.Equal(t, DefaultCallTimeout, g.GetCallTimeout())

	s := SpeechConfig{}
	assert.Equal(t, DefaultSpeechTimeout, s.GetTimeout())

	c := Config{}
	assert.Equal(t, DefaultShutdownTimeout, c.GetShutdownTimeout())
}

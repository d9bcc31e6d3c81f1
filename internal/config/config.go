package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

type BotConfig struct {
	Language string `yaml:"language" env:"HEIRLOOM_BOT_LANGUAGE"`
}

// GenerationConfig controls the dialogue generation passes.
type GenerationConfig struct {
	Provider           string  `yaml:"provider" env:"HEIRLOOM_GENERATION_PROVIDER"` // openrouter, gemini
	Model              string  `yaml:"model" env:"HEIRLOOM_GENERATION_MODEL"`
	ReplyTemperature   float64 `yaml:"reply_temperature"`
	OptionsTemperature float64 `yaml:"options_temperature"`
	MaxRetries         int     `yaml:"max_retries" env:"HEIRLOOM_GENERATION_MAX_RETRIES"`
	HistoryBudget      int     `yaml:"history_budget"`
	WordLimit          int     `yaml:"word_limit"`
	CallTimeout        string  `yaml:"call_timeout" env:"HEIRLOOM_GENERATION_CALL_TIMEOUT"`
	MaxRune            int     `yaml:"max_rune"`
	ExtraAllowedChars  string  `yaml:"extra_allowed_chars"`
	LogGenerations     bool    `yaml:"log_generations" env:"HEIRLOOM_GENERATION_LOG"`
}

// DefaultCallTimeout bounds one provider call when call_timeout is unset.
const DefaultCallTimeout = 60 * time.Second

// GetCallTimeout returns the parsed call timeout.
// Falls back to DefaultCallTimeout if not configured or invalid.
func (c *GenerationConfig) GetCallTimeout() time.Duration {
	return parseDurationOr(c.CallTimeout, DefaultCallTimeout)
}

type OpenRouterConfig struct {
	APIKey   string `yaml:"api_key" env:"HEIRLOOM_OPENROUTER_API_KEY"`
	BaseURL  string `yaml:"base_url" env:"HEIRLOOM_OPENROUTER_BASE_URL"`
	ProxyURL string `yaml:"proxy_url" env:"HEIRLOOM_OPENROUTER_PROXY_URL"`
	// TransportRetries retries 429/5xx inside the client. The dialogue retry
	// loop already retries failed calls, so the default is 0.
	TransportRetries int `yaml:"transport_retries"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key" env:"HEIRLOOM_GEMINI_API_KEY"`
}

// FishConfig configures the fish-speech synthesizer.
type FishConfig struct {
	BaseURL           string  `yaml:"base_url" env:"HEIRLOOM_FISH_BASE_URL"`
	ReferenceDir      string  `yaml:"reference_dir" env:"HEIRLOOM_FISH_REFERENCE_DIR"`
	Format            string  `yaml:"format"`
	ChunkLength       int     `yaml:"chunk_length"`
	TopP              float64 `yaml:"top_p"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
	Temperature       float64 `yaml:"temperature"`
	Seed              int     `yaml:"seed"`
	UseMemoryCache    string  `yaml:"use_memory_cache"`
}

// SpeechConfig configures speech synthesis.
type SpeechConfig struct {
	Enabled      bool              `yaml:"enabled" env:"HEIRLOOM_SPEECH_ENABLED"`
	Provider     string            `yaml:"provider" env:"HEIRLOOM_SPEECH_PROVIDER"` // fish, yandex
	Timeout      string            `yaml:"timeout" env:"HEIRLOOM_SPEECH_TIMEOUT"`
	DefaultVoice string            `yaml:"default_voice"`
	Voices       map[string]string `yaml:"voices"`
	Fish         FishConfig        `yaml:"fish"`
}

// DefaultSpeechTimeout bounds one synthesis call when timeout is unset.
const DefaultSpeechTimeout = 90 * time.Second

// GetTimeout returns the parsed synthesis timeout.
func (c *SpeechConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, DefaultSpeechTimeout)
}

type YandexConfig struct {
	// Enabled turns on voice questions (speech recognition).
	Enabled     bool   `yaml:"enabled" env:"HEIRLOOM_YANDEX_ENABLED"`
	APIKey      string `yaml:"api_key" env:"HEIRLOOM_YANDEX_API_KEY"`
	FolderID    string `yaml:"folder_id" env:"HEIRLOOM_YANDEX_FOLDER_ID"`
	Language    string `yaml:"language"`
	AudioFormat string `yaml:"audio_format"`
	SampleRate  string `yaml:"sample_rate"`
	STTEndpoint string `yaml:"stt_endpoint"`
	TTSEndpoint string `yaml:"tts_endpoint"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"HEIRLOOM_REDIS_ADDR"`
	Password string `yaml:"password" env:"HEIRLOOM_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SessionsConfig selects where conversation histories live.
type SessionsConfig struct {
	Backend     string      `yaml:"backend" env:"HEIRLOOM_SESSIONS_BACKEND"` // sqlite, redis, memory
	TTL         string      `yaml:"ttl"`
	MaxMessages int         `yaml:"max_messages"`
	Redis       RedisConfig `yaml:"redis"`
}

// GetTTL returns the parsed session TTL, zero when unset or invalid.
func (c *SessionsConfig) GetTTL() time.Duration {
	return parseDurationOr(c.TTL, 0)
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"HEIRLOOM_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort      string `yaml:"listen_port" env:"HEIRLOOM_SERVER_PORT"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Generation GenerationConfig `yaml:"generation"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Speech     SpeechConfig     `yaml:"speech"`
	Yandex     YandexConfig     `yaml:"yandex"`
	Catalog    struct {
		Path string `yaml:"path" env:"HEIRLOOM_CATALOG_PATH"`
	} `yaml:"catalog"`
	Sessions SessionsConfig `yaml:"sessions"`
	Database struct {
		Path string `yaml:"path" env:"HEIRLOOM_DATABASE_PATH"`
	} `yaml:"database"`
	Transcript struct {
		Enabled bool   `yaml:"enabled" env:"HEIRLOOM_TRANSCRIPT_ENABLED"`
		Dir     string `yaml:"dir" env:"HEIRLOOM_TRANSCRIPT_DIR"`
	} `yaml:"transcript"`
	Bot BotConfig `yaml:"bot"`
}

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// GetShutdownTimeout returns the parsed server shutdown timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDurationOr(c.Server.ShutdownTimeout, DefaultShutdownTimeout)
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
// Useful for generating example config files.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	g := &c.Generation
	switch g.Provider {
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			errs = append(errs, errors.New("openrouter.api_key is required when generation.provider is openrouter"))
		}
		if c.OpenRouter.TransportRetries < 0 {
			errs = append(errs, fmt.Errorf("openrouter.transport_retries must not be negative, got %d", c.OpenRouter.TransportRetries))
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required when generation.provider is gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("generation.provider must be 'openrouter' or 'gemini', got %q", g.Provider))
	}
	if g.Model == "" {
		errs = append(errs, errors.New("generation.model is required"))
	}
	if g.ReplyTemperature < 0 || g.ReplyTemperature > 2 {
		errs = append(errs, fmt.Errorf("generation.reply_temperature must be between 0 and 2, got %f", g.ReplyTemperature))
	}
	if g.OptionsTemperature < 0 || g.OptionsTemperature > 2 {
		errs = append(errs, fmt.Errorf("generation.options_temperature must be between 0 and 2, got %f", g.OptionsTemperature))
	}
	if g.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("generation.max_retries must be positive, got %d", g.MaxRetries))
	}
	if g.HistoryBudget <= 0 {
		errs = append(errs, fmt.Errorf("generation.history_budget must be positive, got %d", g.HistoryBudget))
	}
	if g.WordLimit <= 0 {
		errs = append(errs, fmt.Errorf("generation.word_limit must be positive, got %d", g.WordLimit))
	}
	errs = appendDurationErr(errs, "generation.call_timeout", g.CallTimeout)

	if c.Speech.Enabled {
		switch c.Speech.Provider {
		case "fish":
			if c.Speech.Fish.BaseURL == "" {
				errs = append(errs, errors.New("speech.fish.base_url is required when speech.provider is fish"))
			}
			if c.Speech.Fish.ReferenceDir == "" {
				errs = append(errs, errors.New("speech.fish.reference_dir is required when speech.provider is fish"))
			}
		case "yandex":
			errs = append(errs, c.validateYandexCredentials("speech.provider is yandex")...)
		default:
			errs = append(errs, fmt.Errorf("speech.provider must be 'fish' or 'yandex', got %q", c.Speech.Provider))
		}
		if c.Speech.DefaultVoice == "" {
			errs = append(errs, errors.New("speech.default_voice is required when speech.enabled is true"))
		}
	}
	errs = appendDurationErr(errs, "speech.timeout", c.Speech.Timeout)

	if c.Yandex.Enabled {
		errs = append(errs, c.validateYandexCredentials("yandex.enabled is true")...)
	}

	switch c.Sessions.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			errs = append(errs, errors.New("sessions.redis.addr is required when sessions.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("sessions.backend must be one of 'sqlite', 'redis', 'memory', got %q", c.Sessions.Backend))
	}
	errs = appendDurationErr(errs, "sessions.ttl", c.Sessions.TTL)
	if c.Sessions.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_messages must not be negative, got %d", c.Sessions.MaxMessages))
	}

	if c.Database.Path == "" && (c.Sessions.Backend == "sqlite" || g.LogGenerations) {
		errs = append(errs, errors.New("database.path is required for the sqlite session backend or generation logs"))
	}

	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		errs = append(errs, errors.New("transcript.dir is required when transcript.enabled is true"))
	}

	switch c.Bot.Language {
	case "en", "nl":
	default:
		errs = append(errs, fmt.Errorf("bot.language must be 'en' or 'nl', got %q", c.Bot.Language))
	}

	errs = appendDurationErr(errs, "server.shutdown_timeout", c.Server.ShutdownTimeout)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) validateYandexCredentials(reason string) []error {
	var errs []error
	if c.Yandex.APIKey == "" {
		errs = append(errs, fmt.Errorf("yandex.api_key is required when %s", reason))
	}
	if c.Yandex.FolderID == "" {
		errs = append(errs, fmt.Errorf("yandex.folder_id is required when %s", reason))
	}
	return errs
}

func appendDurationErr(errs []error, name, value string) []error {
	if value == "" {
		return errs
	}
	if _, err := time.ParseDuration(value); err != nil {
		return append(errs, fmt.Errorf("%s: invalid duration format %q: %w", name, value, err))
	}
	return errs
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Package app wires configuration into the running services shared by the
// HTTP server and the chat CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/persona"
	"github.com/runixer/heirloom/internal/agent/prompts"
	"github.com/runixer/heirloom/internal/agent/scriptwriter"
	"github.com/runixer/heirloom/internal/agentlog"
	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/dialogue"
	"github.com/runixer/heirloom/internal/fishspeech"
	"github.com/runixer/heirloom/internal/gemini"
	"github.com/runixer/heirloom/internal/i18n"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/openrouter"
	"github.com/runixer/heirloom/internal/speech"
	"github.com/runixer/heirloom/internal/storage"
	"github.com/runixer/heirloom/internal/transcript"
	"github.com/runixer/heirloom/internal/ui"
	"github.com/runixer/heirloom/internal/web"
	"github.com/runixer/heirloom/internal/yandex"
)

// Services holds every initialized service. Optional parts are nil when
// their feature is disabled.
type Services struct {
	Catalog      *catalog.Catalog
	Translator   *i18n.Translator
	Store        *storage.SQLiteStore // nil unless sqlite sessions or generation logs are on
	Sessions     storage.SessionRepository
	AgentLogger  *agentlog.Logger
	Provider     llm.Provider
	Executor     *agent.Executor
	Persona      *persona.Agent
	Scriptwriter *scriptwriter.Agent
	Dialogue     *dialogue.Service
	Transcripts  *transcript.Sink
	Speech       *speech.Service
	Recognizer   *yandex.RecognizerClient
	Pages        *ui.Renderer

	closers []func() error
}

// Options adjust Setup for callers other than the server.
type Options struct {
	// Provider replaces the configured generation provider.
	Provider llm.Provider
	// Synthesizer replaces the configured speech synthesizer.
	Synthesizer speech.Synthesizer
}

// Setup initializes all services from cfg. The caller must Close the result.
func Setup(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts Options) (_ *Services, err error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Catalog, err = catalog.Load(logger, cfg.Catalog.Path); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if s.Catalog.Len() == 0 {
		return nil, errors.New("persona catalog is empty")
	}

	if s.Translator, err = i18n.NewTranslator(cfg.Bot.Language); err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	if s.Pages, err = ui.NewRenderer(); err != nil {
		return nil, fmt.Errorf("load page templates: %w", err)
	}

	if cfg.Sessions.Backend == "sqlite" || cfg.Generation.LogGenerations {
		if s.Store, err = openStore(logger, cfg.Database.Path); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.Store.Close)
	}

	if s.Sessions, err = s.newSessions(ctx, cfg); err != nil {
		return nil, err
	}

	var logRepo storage.GenerationLogRepository
	if s.Store != nil {
		logRepo = s.Store
	}
	s.AgentLogger = agentlog.NewLogger(logRepo, logger, cfg.Generation.LogGenerations && logRepo != nil)

	s.Provider = opts.Provider
	if s.Provider == nil {
		if s.Provider, err = newProvider(ctx, logger, cfg); err != nil {
			return nil, err
		}
	}

	s.Executor = agent.NewExecutor(s.Provider, s.AgentLogger, logger, agent.ExecutorOptions{
		Model:       cfg.Generation.Model,
		Policy:      agent.NewCharsetPolicy(rune(cfg.Generation.MaxRune), cfg.Generation.ExtraAllowedChars),
		CallTimeout: cfg.Generation.GetCallTimeout(),
		MaxRetries:  cfg.Generation.MaxRetries,
	})

	builder := prompts.NewBuilder(s.Translator, cfg.Bot.Language, cfg.Generation.WordLimit)
	s.Persona = persona.New(s.Executor, builder, s.Translator, cfg)
	s.Scriptwriter = scriptwriter.New(s.Executor, builder, s.Translator, cfg, logger)

	s.Transcripts = transcript.NewSink(cfg.Transcript.Dir, cfg.Transcript.Enabled, logger)

	var sink dialogue.TranscriptSink
	if s.Transcripts.Enabled() {
		sink = s.Transcripts
	}
	s.Dialogue = dialogue.NewService(s.Catalog, s.Persona, s.Scriptwriter, s.Sessions, sink, cfg, logger)

	if cfg.Speech.Enabled || opts.Synthesizer != nil {
		synth := opts.Synthesizer
		if synth == nil {
			if synth, err = s.newSynthesizer(logger, cfg); err != nil {
				return nil, err
			}
		}
		s.Speech = speech.NewService(logger, synth, speech.Options{
			Provider:     cfg.Speech.Provider,
			Voices:       cfg.Speech.Voices,
			DefaultVoice: cfg.Speech.DefaultVoice,
			Timeout:      cfg.Speech.GetTimeout(),
		})
	}

	if cfg.Yandex.Enabled {
		if s.Recognizer, err = yandex.NewRecognizer(cfg.Yandex, logger); err != nil {
			return nil, fmt.Errorf("create speech recognizer: %w", err)
		}
		s.closers = append(s.closers, s.Recognizer.Close)
	}

	logger.Info("Services initialized",
		"personas", s.Catalog.Len(),
		"provider", cfg.Generation.Provider,
		"model", cfg.Generation.Model,
		"sessions", cfg.Sessions.Backend,
		"speech", s.Speech != nil,
		"voice_questions", s.Recognizer != nil,
	)
	return s, nil
}

func openStore(logger *slog.Logger, path string) (*storage.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	store, err := storage.NewSQLiteStore(logger, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.Init(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func (s *Services) newSessions(ctx context.Context, cfg *config.Config) (storage.SessionRepository, error) {
	switch cfg.Sessions.Backend {
	case "sqlite":
		return s.Store, nil
	case "memory":
		return storage.NewMemorySessionStore(), nil
	case "redis":
		rc := cfg.Sessions.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", rc.Addr, err)
		}
		store := storage.NewRedisSessionStore(client, storage.RedisSessionOptions{
			Prefix:      rc.Prefix,
			TTL:         cfg.Sessions.GetTTL(),
			MaxMessages: cfg.Sessions.MaxMessages,
		})
		s.closers = append(s.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown sessions backend %q", cfg.Sessions.Backend)
	}
}

func newProvider(ctx context.Context, logger *slog.Logger, cfg *config.Config) (llm.Provider, error) {
	switch cfg.Generation.Provider {
	case "gemini":
		p, err := gemini.NewProvider(ctx, cfg.Gemini.APIKey, cfg.Generation.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini provider: %w", err)
		}
		return p, nil
	case "openrouter", "":
		client, err := openrouter.NewClient(logger, openrouter.ClientOptions{
			APIKey:     cfg.OpenRouter.APIKey,
			BaseURL:    cfg.OpenRouter.BaseURL,
			ProxyURL:   cfg.OpenRouter.ProxyURL,
			MaxRetries: cfg.OpenRouter.TransportRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("create openrouter client: %w", err)
		}
		return openrouter.NewProvider(client, cfg.Generation.Model), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

func (s *Services) newSynthesizer(logger *slog.Logger, cfg *config.Config) (speech.Synthesizer, error) {
	switch cfg.Speech.Provider {
	case "yandex":
		synth, err := yandex.NewSynthesizer(cfg.Yandex, logger)
		if err != nil {
			return nil, fmt.Errorf("create yandex synthesizer: %w", err)
		}
		s.closers = append(s.closers, synth.Close)
		return synth, nil
	case "fish", "":
		synth, err := fishspeech.New(cfg.Speech.Fish, &http.Client{}, logger)
		if err != nil {
			return nil, fmt.Errorf("create fish-speech synthesizer: %w", err)
		}
		return synth, nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

// WebDeps returns the services the HTTP API needs.
func (s *Services) WebDeps() web.Deps {
	deps := web.Deps{
		Dialogue:   s.Dialogue,
		Translator: s.Translator,
		Pages:      s.Pages,
	}
	// typed nils must not leak into the interfaces
	if s.Speech != nil {
		deps.Speaker = s.Speech
	}
	if s.Recognizer != nil {
		deps.Recognizer = s.Recognizer
	}
	if s.Store != nil {
		deps.Maintenance = s.Store
	}
	if s.Transcripts.Enabled() {
		deps.Transcripts = s.Transcripts
	}
	return deps
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

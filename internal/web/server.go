// Package web serves the dialogue HTTP API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/dialogue"
	"github.com/runixer/heirloom/internal/i18n"
	"github.com/runixer/heirloom/internal/speech"
	"github.com/runixer/heirloom/internal/storage"
	"github.com/runixer/heirloom/internal/ui"
)

const (
	metricsNamespace = "heirloom"

	// maxBodyBytes bounds request bodies; voice questions arrive base64 encoded.
	maxBodyBytes = 10 * 1024 * 1024

	maintenanceInterval = time.Hour
	generationLogsKeep  = 500

	// transcriptIdle applies when sessions never expire.
	transcriptIdle = 24 * time.Hour
)

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies like traefik),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// Dialogue is the part of dialogue.Service the API needs.
type Dialogue interface {
	Catalog() *catalog.Catalog
	Turn(ctx context.Context, req dialogue.TurnRequest) (*dialogue.TurnResult, error)
	CreateSession(ctx context.Context, persona string) (storage.Session, error)
	SessionTurn(ctx context.Context, sessionID, persona, input string) (*dialogue.TurnResult, error)
	History(ctx context.Context, sessionID string) ([]storage.Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Speaker synthesizes persona speech.
type Speaker interface {
	Speak(ctx context.Context, text, accent string) (*speech.Result, error)
}

// Recognizer transcribes voice questions.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Maintainer reports storage size and removes stale rows.
type Maintainer interface {
	storage.MaintenanceRepository
	RefreshMetrics(ctx context.Context)
}

// TranscriptPruner releases transcript files of idle conversations.
type TranscriptPruner interface {
	Prune(idle time.Duration) int
}

// Deps are the services behind the API. Speaker, Recognizer,
// Maintenance, Transcripts and Pages may be nil.
type Deps struct {
	Dialogue    Dialogue
	Translator  *i18n.Translator
	Speaker     Speaker
	Recognizer  Recognizer
	Maintenance Maintainer
	Transcripts TranscriptPruner
	Pages       *ui.Renderer
}

type Server struct {
	cfg         *config.Config
	dialogue    Dialogue
	translator  *i18n.Translator
	speaker     Speaker
	recognizer  Recognizer
	maintenance Maintainer
	transcripts TranscriptPruner
	pages       *ui.Renderer
	locks       *keyedMutex
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewServer(logger *slog.Logger, cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:         cfg,
		dialogue:    deps.Dialogue,
		translator:  deps.Translator,
		speaker:     deps.Speaker,
		recognizer:  deps.Recognizer,
		maintenance: deps.Maintenance,
		transcripts: deps.Transcripts,
		pages:       deps.Pages,
		locks:       newKeyedMutex(),
		logger:      logger.With("component", "web_server"),
	}
}

// Handler returns the API routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/personas", instrumentHandler("personas", s.personasHandler))
	mux.HandleFunc("GET /api/questions", instrumentHandler("questions", s.questionsHandler))
	mux.HandleFunc("POST /api/ask", instrumentHandler("ask", s.askHandler))
	mux.HandleFunc("POST /api/speak", instrumentHandler("speak", s.speakHandler))
	mux.HandleFunc("POST /api/sessions", instrumentHandler("sessions", s.createSessionHandler))
	mux.HandleFunc("GET /api/sessions/{id}", instrumentHandler("session_history", s.sessionHistoryHandler))
	mux.HandleFunc("DELETE /api/sessions/{id}", instrumentHandler("session_delete", s.deleteSessionHandler))
	mux.HandleFunc("GET /healthz", instrumentHandler("healthz", s.healthzHandler))
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.pages != nil {
		mux.HandleFunc("GET /{$}", instrumentHandler("index", s.indexPage))
		mux.HandleFunc("GET /chat/{title}", instrumentHandler("chat", s.chatPage))
	}

	return s.loggingMiddleware(mux)
}

// Start serves until ctx is canceled, then shuts down gracefully. Background
// maintenance is stopped before Start returns, also when serving fails.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	s.startMaintenance(ctx)

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startMaintenance refreshes storage metrics now and then hourly, pruning
// expired sessions, old generation logs and idle transcripts.
func (s *Server) startMaintenance(ctx context.Context) {
	if s.maintenance == nil && s.transcripts == nil {
		return
	}
	s.runMaintenance(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runMaintenance(ctx)
			}
		}
	}()
}

func (s *Server) runMaintenance(ctx context.Context) {
	ttl := s.cfg.Sessions.GetTTL()
	if s.maintenance != nil {
		if ttl > 0 {
			deleted, err := s.maintenance.CleanupSessions(ctx, ttl)
			if err != nil {
				s.logger.Error("failed to cleanup sessions", "error", err)
			} else if deleted > 0 {
				s.logger.Info("cleaned up sessions", "deleted", deleted)
			}
		}

		deleted, err := s.maintenance.CleanupGenerationLogs(ctx, generationLogsKeep)
		if err != nil {
			s.logger.Error("failed to cleanup generation_logs", "error", err)
		} else if deleted > 0 {
			s.logger.Info("cleaned up generation_logs", "deleted", deleted)
		}

		s.maintenance.RefreshMetrics(ctx)
	}

	if s.transcripts != nil {
		idle := transcriptIdle
		if ttl > 0 {
			idle = ttl
		}
		if dropped := s.transcripts.Prune(idle); dropped > 0 {
			s.logger.Info("released idle transcripts", "dropped", dropped)
		}
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}

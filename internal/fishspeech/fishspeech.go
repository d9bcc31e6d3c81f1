// Package fishspeech is a speech.Synthesizer for a fish-speech API server
// that clones a voice from reference audio.
package fishspeech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/speech"
)

// ErrReferenceMissing is returned when the reference audio or its
// transcript for a voice is not on disk.
var ErrReferenceMissing = errors.New("fish-speech reference missing")

// ErrAPI is wrapped by every non-OK response error.
var ErrAPI = errors.New("fish-speech API error")

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Reference is one voice sample sent with every request.
type Reference struct {
	Audio []byte `json:"audio"`
	Text  string `json:"text"`
}

// TTSRequest is the body of POST /v1/tts.
type TTSRequest struct {
	Text              string      `json:"text"`
	Format            string      `json:"format"`
	References        []Reference `json:"references"`
	ReferenceID       *string     `json:"reference_id"`
	ChunkLength       int         `json:"chunk_length"`
	MaxNewTokens      int         `json:"max_new_tokens"`
	TopP              float64     `json:"top_p"`
	RepetitionPenalty float64     `json:"repetition_penalty"`
	Temperature       float64     `json:"temperature"`
	Seed              *int        `json:"seed,omitempty"`
	UseMemoryCache    string      `json:"use_memory_cache"`
	Normalize         bool        `json:"normalize"`
	Streaming         bool        `json:"streaming"`
}

// Synthesizer calls the fish-speech HTTP API.
type Synthesizer struct {
	httpClient *http.Client
	endpoint   string
	refDir     string
	cfg        config.FishConfig
	logger     *slog.Logger
}

// New creates a Synthesizer. httpClient may be nil.
func New(cfg config.FishConfig, httpClient *http.Client, logger *slog.Logger) (*Synthesizer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fish-speech base url is required")
	}
	endpoint, err := url.JoinPath(cfg.BaseURL, "v1", "tts")
	if err != nil {
		return nil, fmt.Errorf("invalid fish-speech base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	return &Synthesizer{
		httpClient: httpClient,
		endpoint:   endpoint,
		refDir:     cfg.ReferenceDir,
		cfg:        cfg,
		logger:     logger.With("component", "fishspeech"),
	}, nil
}

// LoadReference reads <dir>/<voice>.wav and its transcript <dir>/<voice>.txt.
func LoadReference(dir, voice string) (Reference, error) {
	name := filepath.Base(strings.TrimSpace(voice))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Reference{}, fmt.Errorf("%w: empty voice", ErrReferenceMissing)
	}

	audio, err := os.ReadFile(filepath.Join(dir, name+".wav"))
	if err != nil {
		return Reference{}, referenceErr(err, name+".wav")
	}
	text, err := os.ReadFile(filepath.Join(dir, name+".txt"))
	if err != nil {
		return Reference{}, referenceErr(err, name+".txt")
	}
	if len(audio) == 0 {
		return Reference{}, fmt.Errorf("%w: %s is empty", ErrReferenceMissing, name+".wav")
	}
	return Reference{Audio: audio, Text: strings.TrimSpace(string(text))}, nil
}

func referenceErr(err error, file string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrReferenceMissing, file)
	}
	return fmt.Errorf("read reference %s: %w", file, err)
}

// Synthesize returns the audio for req.Text in the reference voice.
// A missing reference fails before any network call.
func (s *Synthesizer) Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	ref, err := LoadReference(s.refDir, req.Voice)
	if err != nil {
		return nil, err
	}

	seed := s.cfg.Seed
	body, err := json.Marshal(TTSRequest{
		Text:              req.Text,
		Format:            s.cfg.Format,
		References:        []Reference{ref},
		ChunkLength:       s.cfg.ChunkLength,
		TopP:              s.cfg.TopP,
		RepetitionPenalty: s.cfg.RepetitionPenalty,
		Temperature:       s.cfg.Temperature,
		Seed:              &seed,
		UseMemoryCache:    s.cfg.UseMemoryCache,
		Normalize:         true,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "heirloom/1.0")

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fish-speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Error("fish-speech returned non-OK status", "status", resp.Status, "body", string(msg))
		return nil, fmt.Errorf("%w: %s", ErrAPI, resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fish-speech audio: %w", err)
	}

	s.logger.Debug("fish-speech audio received",
		"voice", req.Voice,
		"bytes", len(audio),
		"duration", time.Since(start),
	)
	return audio, nil
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

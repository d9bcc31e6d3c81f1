package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNothingToSay is returned when normalization leaves no speakable text.
var ErrNothingToSay = errors.New("nothing to synthesize")

// SynthesisRequest is one synthesis call.
type SynthesisRequest struct {
	// Text is the normalized, padded text.
	Text string
	// Voice is the provider voice (or reference) name.
	Voice string
}

// Synthesizer turns normalized text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, req SynthesisRequest) ([]byte, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	return f(ctx, req)
}

// Result is synthesized audio together with the text it was made from.
type Result struct {
	Audio []byte
	Text  Text
	Voice string
}

// Base64 returns the audio encoded for JSON transport.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Audio)
}

// Service normalizes text and sends it to a Synthesizer with the voice that
// matches the persona accent.
type Service struct {
	synth        Synthesizer
	provider     string
	voices       map[string]string
	defaultVoice string
	timeout      time.Duration
	logger       *slog.Logger
}

// Options configure a Service.
type Options struct {
	// Provider labels metrics and logs ("fish", "yandex").
	Provider string
	// Voices maps a lowercase accent to a provider voice.
	Voices map[string]string
	// DefaultVoice is used for accents missing from Voices.
	DefaultVoice string
	// Timeout bounds one synthesis call. Zero means no extra deadline.
	Timeout time.Duration
}

// NewService creates a speech service.
func NewService(logger *slog.Logger, synth Synthesizer, opts Options) *Service {
	voices := make(map[string]string, len(opts.Voices))
	for accent, voice := range opts.Voices {
		voices[strings.ToLower(strings.TrimSpace(accent))] = voice
	}
	provider := opts.Provider
	if provider == "" {
		provider = "unknown"
	}
	return &Service{
		synth:        synth,
		provider:     provider,
		voices:       voices,
		defaultVoice: opts.DefaultVoice,
		timeout:      opts.Timeout,
		logger:       logger.With("component", "speech"),
	}
}

// VoiceFor returns the voice for an accent, falling back to the default.
func (s *Service) VoiceFor(accent string) string {
	if v, ok := s.voices[strings.ToLower(strings.TrimSpace(accent))]; ok && v != "" {
		return v
	}
	return s.defaultVoice
}

// Speak normalizes text and synthesizes it in the voice for accent.
func (s *Service) Speak(ctx context.Context, text, accent string) (*Result, error) {
	normalized := Normalize(text)
	if normalized.Empty() {
		return nil, ErrNothingToSay
	}
	voice := s.VoiceFor(accent)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	audio, err := s.synth.Synthesize(ctx, SynthesisRequest{
		Text:  normalized.String(),
		Voice: voice,
	})
	duration := time.Since(start)

	if err != nil {
		recordSynthesis(s.provider, statusError, duration, 0)
		s.logger.Warn("synthesis failed", "voice", voice, "duration", duration, "error", err)
		return nil, fmt.Errorf("synthesize with voice %q: %w", voice, err)
	}
	if len(audio) == 0 {
		recordSynthesis(s.provider, statusError, duration, 0)
		return nil, fmt.Errorf("synthesize with voice %q: empty audio", voice)
	}

	recordSynthesis(s.provider, statusSuccess, duration, len(audio))
	s.logger.Debug("synthesized speech",
		"voice", voice,
		"lines", len(normalized.Lines),
		"bytes", len(audio),
		"duration", duration,
	)
	return &Result{Audio: audio, Text: normalized, Voice: voice}, nil
}

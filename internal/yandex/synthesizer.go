package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"

	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/speech"
)

// ErrNoAudio is returned when the synthesis stream ends without audio.
var ErrNoAudio = errors.New("yandex tts returned no audio")

// Synthesizer is a speech.Synthesizer backed by SpeechKit TTS v3.
type Synthesizer struct {
	creds  Credentials
	logger *slog.Logger
	conn   *grpc.ClientConn
}

// NewSynthesizer connects to the TTS endpoint from cfg.
func NewSynthesizer(cfg config.YandexConfig, logger *slog.Logger, opts ...grpc.DialOption) (*Synthesizer, error) {
	target := cfg.TTSEndpoint
	if target == "" {
		target = DefaultTTSEndpoint
	}
	conn, err := dial(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		creds:  Credentials{APIKey: cfg.APIKey, FolderID: cfg.FolderID},
		logger: logger.With("component", "yandex_tts"),
		conn:   conn,
	}, nil
}

// Synthesize renders req.Text as WAV in req.Voice.
func (s *Synthesizer) Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	start := time.Now()
	audio, err := s.synthesize(ctx, req)
	recordCall(opSynthesize, start, err)
	return audio, err
}

func (s *Synthesizer) synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	in := &tts.UtteranceSynthesisRequest{
		Utterance: &tts.UtteranceSynthesisRequest_Text{Text: req.Text},
		OutputAudioSpec: &tts.AudioFormatOptions{
			AudioFormat: &tts.AudioFormatOptions_ContainerAudio{
				ContainerAudio: &tts.ContainerAudio{ContainerAudioType: tts.ContainerAudio_WAV},
			},
		},
		LoudnessNormalizationType: tts.UtteranceSynthesisRequest_LUFS,
	}
	if req.Voice != "" {
		in.Hints = []*tts.Hints{{Hint: &tts.Hints_Voice{Voice: req.Voice}}}
	}

	stream, err := tts.NewSynthesizerClient(s.conn).UtteranceSynthesis(s.creds.outgoing(ctx), in)
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var audio []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive audio: %w", err)
		}
		audio = append(audio, resp.GetAudioChunk().GetData()...)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	s.logger.Debug("Synthesized reply", "voice", req.Voice, "bytes", len(audio))
	return audio, nil
}

// Close closes the gRPC connection.
func (s *Synthesizer) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

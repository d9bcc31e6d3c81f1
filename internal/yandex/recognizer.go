package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	stt "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	"google.golang.org/grpc"

	"github.com/runixer/heirloom/internal/config"
)

const (
	chunkSize         = 4096 // 4 KB
	defaultChunkDelay = 100 * time.Millisecond
)

// Recognizer turns a recorded voice question into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// RecognizerClient is a Recognizer backed by SpeechKit STT v3 streaming.
type RecognizerClient struct {
	creds       Credentials
	language    string
	audioFormat string
	sampleRate  int
	chunkDelay  time.Duration
	logger      *slog.Logger
	conn        *grpc.ClientConn
}

// NewRecognizer connects to the STT endpoint from cfg. Extra dial options
// replace the default TLS transport.
func NewRecognizer(cfg config.YandexConfig, logger *slog.Logger, opts ...grpc.DialOption) (*RecognizerClient, error) {
	target := cfg.STTEndpoint
	if target == "" {
		target = DefaultSTTEndpoint
	}
	conn, err := dial(target, opts...)
	if err != nil {
		return nil, err
	}

	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	audioFormat := cfg.AudioFormat
	if audioFormat == "" {
		audioFormat = "ogg_opus"
	}
	sampleRate := 48000
	if cfg.SampleRate != "" {
		if s, err := strconv.Atoi(cfg.SampleRate); err == nil {
			sampleRate = s
		}
	}

	return &RecognizerClient{
		creds:       Credentials{APIKey: cfg.APIKey, FolderID: cfg.FolderID},
		language:    language,
		audioFormat: audioFormat,
		sampleRate:  sampleRate,
		chunkDelay:  defaultChunkDelay,
		logger:      logger.With("component", "yandex_stt"),
		conn:        conn,
	}, nil
}

func (c *RecognizerClient) audioFormatOptions() *stt.AudioFormatOptions {
	switch c.audioFormat {
	case "lpcm":
		return &stt.AudioFormatOptions{
			AudioFormat: &stt.AudioFormatOptions_RawAudio{
				RawAudio: &stt.RawAudio{
					AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
					SampleRateHertz:   int64(c.sampleRate),
					AudioChannelCount: 1,
				},
			},
		}
	case "wav":
		return &stt.AudioFormatOptions{
			AudioFormat: &stt.AudioFormatOptions_ContainerAudio{
				ContainerAudio: &stt.ContainerAudio{ContainerAudioType: stt.ContainerAudio_WAV},
			},
		}
	default:
		return &stt.AudioFormatOptions{
			AudioFormat: &stt.AudioFormatOptions_ContainerAudio{
				ContainerAudio: &stt.ContainerAudio{ContainerAudioType: stt.ContainerAudio_OGG_OPUS},
			},
		}
	}
}

// Recognize streams audio to SpeechKit and joins the final alternatives.
func (c *RecognizerClient) Recognize(ctx context.Context, audio []byte) (string, error) {
	start := time.Now()
	stream, err := stt.NewRecognizerClient(c.conn).RecognizeStreaming(c.creds.outgoing(ctx))
	if err != nil {
		recordCall(opRecognize, start, err)
		return "", fmt.Errorf("failed to open stream: %w", err)
	}

	text, err := c.recognize(ctx, stream, audio)
	recordCall(opRecognize, start, err)
	return text, err
}

func (c *RecognizerClient) recognize(ctx context.Context, stream stt.Recognizer_RecognizeStreamingClient, audio []byte) (string, error) {
	err := stream.Send(&stt.StreamingRequest{
		Event: &stt.StreamingRequest_SessionOptions{
			SessionOptions: &stt.StreamingOptions{
				RecognitionModel: &stt.RecognitionModelOptions{
					AudioFormat: c.audioFormatOptions(),
					TextNormalization: &stt.TextNormalizationOptions{
						TextNormalization: stt.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
						ProfanityFilter:   true,
					},
					LanguageRestriction: &stt.LanguageRestrictionOptions{
						RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{c.language},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send session options: %w", err)
	}

	for i := 0; i < len(audio); i += chunkSize {
		end := min(i+chunkSize, len(audio))
		err = stream.Send(&stt.StreamingRequest{
			Event: &stt.StreamingRequest_Chunk{
				Chunk: &stt.AudioChunk{Data: audio[i:end]},
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to send audio chunk: %w", err)
		}
		// SpeechKit rejects audio streamed faster than real time.
		if c.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.chunkDelay):
			}
		}
	}

	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var finalTexts []string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive from stream: %w", err)
		}

		if final := resp.GetFinal(); final != nil {
			if alts := final.GetAlternatives(); len(alts) > 0 && alts[0].GetText() != "" {
				finalTexts = append(finalTexts, alts[0].GetText())
			}
		} else if partial := resp.GetPartial(); partial != nil {
			if alts := partial.GetAlternatives(); len(alts) > 0 {
				c.logger.Debug("Partial recognition result", "text", alts[0].GetText())
			}
		}
	}

	text := strings.Join(finalTexts, " ")
	c.logger.Info("Recognized voice question", "recognized_text", text)
	return text, nil
}

// Close closes the gRPC connection.
func (c *RecognizerClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ Recognizer = (*RecognizerClient)(nil)

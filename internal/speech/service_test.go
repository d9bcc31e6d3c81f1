package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestService_VoiceFor(t *testing.T) {
	s := NewService(testLogger(), nil, Options{
		Voices:       map[string]string{"French_Male": "fr-voice", "british": "gb-voice"},
		DefaultVoice: "us-voice",
	})

	assert.Equal(t, "fr-voice", s.VoiceFor("french_male"))
	assert.Equal(t, "gb-voice", s.VoiceFor(" British "))
	assert.Equal(t, "us-voice", s.VoiceFor("american"))
	assert.Equal(t, "us-voice", s.VoiceFor(""))
}

func TestService_Speak(t *testing.T) {
	var got SynthesisRequest
	var hadDeadline bool
	synth := SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
		got = req
		_, hadDeadline = ctx.Deadline()
		return []byte("RIFFdata"), nil
	})
	s := NewService(testLogger(), synth, Options{
		Provider:     "fish",
		Voices:       map[string]string{"french_male": "fr-voice"},
		DefaultVoice: "us-voice",
		Timeout:      time.Minute,
	})

	res, err := s.Speak(context.Background(), "*creaks softly* Hello there.", "french_male")
	require.NoError(t, err)

	assert.Equal(t, " creaks softly. \n Hello there. ", got.Text)
	assert.Equal(t, "fr-voice", got.Voice)
	assert.True(t, hadDeadline)
	assert.Equal(t, "fr-voice", res.Voice)
	assert.Equal(t, []byte("RIFFdata"), res.Audio)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFFdata")), res.Base64())
}

func TestService_SpeakNothingToSay(t *testing.T) {
	called := false
	synth := SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
		called = true
		return nil, nil
	})
	s := NewService(testLogger(), synth, Options{DefaultVoice: "v"})

	_, err := s.Speak(context.Background(), "@@@", "")
	assert.ErrorIs(t, err, ErrNothingToSay)
	assert.False(t, called)
}

func TestService_SpeakErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewService(testLogger(), SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
		return nil, boom
	}), Options{DefaultVoice: "v"})

	_, err := s.Speak(context.Background(), "Hello.", "")
	assert.ErrorIs(t, err, boom)

	empty := NewService(testLogger(), SynthesizerFunc(func(ctx context.Context, req SynthesisRequest) ([]byte, error) {
		return []byte{}, nil
	}), Options{DefaultVoice: "v"})
	_, err = empty.Speak(context.Background(), "Hello.", "")
	assert.Error(t, err)
}

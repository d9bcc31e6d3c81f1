package gemini

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/runixer/heirloom/internal/llm"
)

type mockModels struct {
	mock.Mock
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.GenerateContentResponse), args.Error(1)
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		}},
	}
}

func testProvider(models contentGenerator) *Provider {
	return newProvider(models, "gemini-2.5-flash", slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestComplete_MapsRoles(t *testing.T) {
	models := new(mockModels)
	models.On("GenerateContent", mock.Anything, "gemini-2.5-flash",
		mock.MatchedBy(func(c []*genai.Content) bool {
			return len(c) == 3 &&
				c[0].Role == genai.RoleUser && c[0].Parts[0].Text == "Hi chair" &&
				c[1].Role == genai.RoleModel && c[1].Parts[0].Text == "Bonjour!" &&
				c[2].Role == genai.RoleUser && c[2].Parts[0].Text == "Who made you?"
		}),
		mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
			return cfg.SystemInstruction != nil &&
				cfg.SystemInstruction.Parts[0].Text == "You are a chair." &&
				cfg.Temperature != nil && *cfg.Temperature == float32(0.7) &&
				cfg.ResponseSchema == nil && cfg.ResponseMIMEType == ""
		}),
	).Return(textResponse(&genai.Part{Text: "A master in Amsterdam."}), nil).Once()

	text, err := testProvider(models).Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a chair."},
			{Role: llm.RoleUser, Content: "Hi chair"},
			{Role: llm.RoleAssistant, Content: "Bonjour!"},
			{Role: llm.RoleUser, Content: "Who made you?"},
		},
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "A master in Amsterdam.", text)
	models.AssertExpectations(t)
}

func TestComplete_Schema(t *testing.T) {
	models := new(mockModels)
	models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
			return cfg.ResponseMIMEType == "application/json" &&
				cfg.ResponseSchema != nil &&
				cfg.ResponseSchema.Type == genai.TypeObject
		}),
	).Return(textResponse(&genai.Part{Text: `{"strategy":"s",`}, &genai.Part{Text: `"options":["a","b","c"]}`}), nil).Once()

	text, err := testProvider(models).Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
		Schema: &llm.Schema{Name: "reply_options", Definition: map[string]any{
			"type":       "object",
			"properties": map[string]any{"strategy": map[string]any{"type": "string"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"strategy":"s","options":["a","b","c"]}`, text)
}

func TestComplete_SkipsThoughts(t *testing.T) {
	models := new(mockModels)
	models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(textResponse(&genai.Part{Text: "planning", Thought: true}, &genai.Part{Text: "Hello."}), nil)

	text, err := testProvider(models).Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "Hello.", text)
}

func TestComplete_Errors(t *testing.T) {
	models := new(mockModels)
	models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()
	models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&genai.GenerateContentResponse{}, nil).Once()

	p := testProvider(models)

	_, err := p.Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = p.Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = p.Complete(context.Background(), llm.Request{
		Schema: &llm.Schema{Name: "bad", Definition: map[string]any{"type": "tuple"}},
	})
	assert.Error(t, err)
	models.AssertNumberOfCalls(t, "GenerateContent", 2)
}

func TestConvertSchema(t *testing.T) {
	s, err := ConvertSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"strategy": map[string]any{"type": "string", "description": "why"},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 3,
				"maxItems": float64(3),
			},
			"mood": map[string]any{"type": "string", "enum": []any{"happy", "sad"}},
		},
		"required":             []string{"strategy", "options"},
		"additionalProperties": false,
	})
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"strategy", "options"}, s.Required)
	assert.Equal(t, []string{"strategy", "options"}, s.PropertyOrdering)
	assert.Equal(t, "why", s.Properties["strategy"].Description)

	options := s.Properties["options"]
	assert.Equal(t, genai.TypeArray, options.Type)
	assert.Equal(t, genai.TypeString, options.Items.Type)
	require.NotNil(t, options.MinItems)
	assert.Equal(t, int64(3), *options.MinItems)
	assert.Equal(t, int64(3), *options.MaxItems)

	assert.Equal(t, []string{"happy", "sad"}, s.Properties["mood"].Enum)
}

func TestConvertSchema_Errors(t *testing.T) {
	_, err := ConvertSchema(nil)
	assert.Error(t, err)

	_, err = ConvertSchema(map[string]any{"type": "object", "properties": map[string]any{"x": "string"}})
	assert.Error(t, err)

	_, err = ConvertSchema(map[string]any{"type": "array", "items": map[string]any{}})
	assert.Error(t, err)
}

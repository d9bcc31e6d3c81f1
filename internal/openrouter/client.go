// Package openrouter is a client for the OpenRouter chat completions API and
// an llm.Provider built on it.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/runixer/heirloom/internal/jobtype"
)

// DefaultBaseURL is the public OpenRouter API.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Retry configuration
const (
	baseDelay    = 1 * time.Second
	maxDelay     = 30 * time.Second
	jitterFactor = 0.2 // 20% jitter
)

// ErrAPI is wrapped by every non-OK response error.
var ErrAPI = errors.New("openrouter API error")

type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// FilterReasoningForLog keeps only the human-readable "reasoning.text"
// entries of reasoning_details, dropping encrypted blobs.
func FilterReasoningForLog(details interface{}) interface{} {
	arr, ok := details.([]interface{})
	if !ok {
		return details
	}

	var filtered []interface{}
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if t, ok := m["type"].(string); ok && t == "reasoning.text" {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

type clientImpl struct {
	httpClient  *http.Client
	apiKey      string
	apiEndpoint string
	maxRetries  int
	logger      *slog.Logger
}

// isRetryableStatusCode returns true if the HTTP status code indicates a retryable error.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// isRetryableError returns true if the error is a network/timeout error that should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// calculateBackoff returns the delay for the given attempt using exponential backoff with jitter.
func calculateBackoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(float64(delay) * jitterFactor * (2*rand.Float64() - 1))
	return delay + jitter
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReasoningConfig controls the model's internal reasoning behavior.
type ReasoningConfig struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Exclude   bool   `json:"exclude,omitempty"`
}

type ChatCompletionRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Temperature    *float64         `json:"temperature,omitempty"`
	ResponseFormat interface{}      `json:"response_format,omitempty"`
	Reasoning      *ReasoningConfig `json:"reasoning,omitempty"`
}

type JSONSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict,omitempty"`
	Schema map[string]interface{} `json:"schema"`
}

type ResponseFormatJSONSchema struct {
	Type       string     `json:"type"` // "json_schema"
	JSONSchema JSONSchema `json:"json_schema"`
}

type ResponseMessage struct {
	Role             string      `json:"role"`
	Content          string      `json:"content"`
	Reasoning        string      `json:"reasoning,omitempty"`
	ReasoningDetails interface{} `json:"reasoning_details,omitempty"`
}

type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Index        int             `json:"index"`
}

type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	Cost             *float64 `json:"cost,omitempty"` // Cost in USD from OpenRouter
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ClientOptions configure the HTTP client.
type ClientOptions struct {
	APIKey   string
	BaseURL  string // Defaults to DefaultBaseURL
	ProxyURL string
	// MaxRetries retries 429/5xx and network errors inside one call.
	MaxRetries int
	Timeout    time.Duration // Defaults to 5 minutes
}

func NewClient(logger *slog.Logger, opts ClientOptions) (Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   10,
	}

	clientLogger := logger.With("component", "openrouter_client")

	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)

		safe := *proxy
		if safe.User != nil {
			safe.User = url.UserPassword(safe.User.Username(), "*****")
		}
		clientLogger.Info("Using proxy for OpenRouter", "proxy_url", safe.String())
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &clientImpl{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		apiKey:      opts.APIKey,
		apiEndpoint: baseURL,
		maxRetries:  max(opts.MaxRetries, 0),
		logger:      clientLogger,
	}, nil
}

func (c *clientImpl) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	startTime := time.Now()
	jt := jobtype.FromContext(ctx).String()

	contextChars := 0
	for _, msg := range req.Messages {
		contextChars += len(msg.Content)
	}

	c.logger.Debug("Sending request to OpenRouter",
		"model", req.Model,
		"job", jt,
		"message_count", len(req.Messages),
		"context_chars", contextChars,
		"structured", req.ResponseFormat != nil,
	)

	body, err := json.Marshal(req)
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	endpoint, err := url.JoinPath(c.apiEndpoint, "chat/completions")
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	var responseBody []byte
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			RecordLLMRetry(req.Model)
			delay := calculateBackoff(attempt - 1)
			c.logger.Warn("Retrying OpenRouter request",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-ctx.Done():
				return ChatCompletionResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return ChatCompletionResponse{}, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", "heirloom/1.0")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableError(err) && attempt < c.maxRetries {
				lastErr = err
				continue
			}
			RecordLLMRequest(req.Model, jt, time.Since(startTime).Seconds(), false, 0, 0, nil)
			return ChatCompletionResponse{}, err
		}

		responseBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if isRetryableError(err) && attempt < c.maxRetries {
				lastErr = err
				continue
			}
			RecordLLMRequest(req.Model, jt, time.Since(startTime).Seconds(), false, 0, 0, nil)
			return ChatCompletionResponse{}, err
		}

		if resp.StatusCode == http.StatusOK {
			break
		}

		if isRetryableStatusCode(resp.StatusCode) && attempt < c.maxRetries {
			lastErr = fmt.Errorf("%w: %s", ErrAPI, resp.Status)
			continue
		}

		c.logger.Error("OpenRouter returned non-OK status", "status", resp.Status, "body", string(responseBody))
		RecordLLMRequest(req.Model, jt, time.Since(startTime).Seconds(), false, 0, 0, nil)
		return ChatCompletionResponse{}, fmt.Errorf("%w: %s", ErrAPI, resp.Status)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(responseBody, &chatResp); err != nil {
		c.logger.Error("Failed to decode OpenRouter response", "error", err, "body_length", len(responseBody))
		RecordLLMRequest(req.Model, jt, time.Since(startTime).Seconds(), false, 0, 0, nil)
		return ChatCompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) > 0 {
		msg := chatResp.Choices[0].Message
		c.logger.Debug("OpenRouter response content",
			"content", msg.Content,
			"finish_reason", chatResp.Choices[0].FinishReason,
			"reasoning_details", FilterReasoningForLog(msg.ReasoningDetails),
		)
	}

	c.logger.Info("OpenRouter response parsed",
		"model", chatResp.Model,
		"job", jt,
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"cost", chatResp.Usage.Cost,
		"duration", time.Since(startTime),
	)

	RecordLLMRequest(req.Model, jt, time.Since(startTime).Seconds(), true,
		chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens, chatResp.Usage.Cost)

	return chatResp, nil
}

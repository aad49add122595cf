// Package openai is a small chat-completions client for JSON-mode prompts.
package openai

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"mosaic-functions/internal/common/errors"
	commonhttp "mosaic-functions/internal/common/http"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/metrics"
	"mosaic-functions/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 40 * time.Second

	// SystemJSONPrompt is sent as the system message of every JSON-mode request.
	SystemJSONPrompt = "You are a helpful assistant designed to output JSON."
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond caps outgoing requests across all callers. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int
}

type Client struct {
	http    *commonhttp.Client
	baseURL string
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewClient fails when no API key is configured.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewMissingSecretError("openaiApiKey")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	// the per-call context carries the deadline
	httpClient := commonhttp.NewClient(0).WithHeader("Authorization", "Bearer "+cfg.APIKey)

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		if cfg.Burst <= 0 {
			cfg.Burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: limiter,
		logger:  log.Named("openai"),
	}, nil
}

// CompleteJSON sends a JSON-mode chat completion and returns the content of
// the first choice. There are no retries; the call is bounded by the client
// timeout.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, seed int) (content string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "openai.chat_completion",
		attribute.String("model", c.model),
		attribute.Int("seed", seed),
	)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SourceRequestDuration.WithLabelValues("openai", status).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	// waiting for a token counts against the request budget
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.NewAITimeoutError(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req := ChatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
		Seed:           &seed,
	}

	var resp ChatResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/v1/chat/completions", req, &resp); err != nil {
		return "", c.classify(ctx, err)
	}

	if resp.Error != nil {
		return "", errors.NewAIRequestError(fmt.Errorf("%s", resp.Error.Message))
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewAIInvalidOutputError(fmt.Errorf("response has no choices"))
	}

	content = resp.Choices[0].Message.Content
	c.logger.Debug("Chat completion received", map[string]interface{}{
		"model":        resp.Model,
		"finishReason": resp.Choices[0].FinishReason,
		"totalTokens":  resp.Usage.TotalTokens,
	})
	return content, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewAITimeoutError(fmt.Errorf("no response within %s", c.timeout))
	}

	var statusErr *commonhttp.StatusError
	if stderrors.As(err, &statusErr) {
		var apiErr ChatResponse
		if json.Unmarshal([]byte(statusErr.Body), &apiErr) == nil && apiErr.Error != nil {
			return errors.NewAIRequestError(fmt.Errorf("status %d: %s", statusErr.StatusCode, apiErr.Error.Message))
		}
	}
	return errors.NewAIRequestError(err)
}

// TextMessage builds a plain-text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// VisionMessage builds a user message carrying text and an image URL.
func VisionMessage(text, imageURL string) Message {
	return Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}
}

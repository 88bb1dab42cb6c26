// Package genai invokes the generative reasoning service over HTTP.
package genai

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"query-orchestrator/internal/common/errors"
	httpclient "query-orchestrator/internal/common/http"
	"query-orchestrator/internal/common/logger"
)

const generatePath = "/api/ai/generate"

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

type generateRequest struct {
	Role        string  `json:"role"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Client is a reasoning executor backed by the generation endpoint.
type Client struct {
	config Config
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger, opts ...httpclient.Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts = append([]httpclient.Option{httpclient.WithMaxRetries(cfg.MaxRetries)}, opts...)
	if cfg.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &Client{
		config: cfg,
		http:   httpclient.NewClient(cfg.Timeout, opts...),
		logger: log,
	}
}

// Invoke runs one generation for role. The service usually answers with
// {"text": ...}; a {"data": ...} field is returned decoded, and a body that
// is not JSON is returned as raw text.
func (c *Client) Invoke(ctx context.Context, role, prompt string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	body, err := c.http.PostJSON(ctx, strings.TrimRight(c.config.BaseURL, "/")+generatePath, generateRequest{
		Role:        role,
		Prompt:      prompt,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.NewReasoningTimeoutError(role)
		}
		return nil, errors.NewReasoningFailedError(role, err)
	}

	result := decodeResponse(body)
	c.logger.Debug("reasoning step completed", map[string]interface{}{
		"role":       role,
		"promptLen":  len(prompt),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func decodeResponse(body []byte) interface{} {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return string(body)
	}
	if data, ok := envelope["data"]; ok && data != nil {
		return data
	}
	if text, ok := envelope["text"].(string); ok {
		return text
	}
	return envelope
}

func isTimeout(ctx context.Context, err error) bool {
	if stdErrors.Is(err, httpclient.ErrTimeout) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var netErr interface{ Timeout() bool }
	return stdErrors.As(err, &netErr) && netErr.Timeout()
}

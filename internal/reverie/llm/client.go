// Package llm talks to an OpenAI-compatible chat completions endpoint and
// hosts the model-backed context compression used during prompt assembly.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bcraddock/reverie/common/retry"
)

const (
	defaultChatModel = "local-model"
	defaultTimeout   = 120 * time.Second
)

// ClientConfig configures the chat completions client.
type ClientConfig struct {
	// URL is the full completions endpoint, e.g.
	// http://localhost:8080/v1/chat/completions.
	URL string

	// APIKey is the optional bearer token. Local model servers usually
	// accept requests without one.
	APIKey string

	// Model is the chat model name. Defaults to local-model, which most
	// single-model local servers accept for any value.
	Model string

	// Timeout is the HTTP request timeout. Role-play completions can be
	// slow on local hardware, so the default is generous: 120 s.
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat completions API. Safe for
// concurrent use.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient returns a chat completions client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Sampling carries the per-request generation parameters.
type Sampling struct {
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// MaxTokens caps the completion length. Zero omits the field so the
	// server default applies.
	MaxTokens int
}

// --- minimal chat completions wire types ---

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// statusError carries an HTTP status for retry classification.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// Complete sends the assembled messages and returns the generated reply
// text. Transient failures (429, 5xx, connection errors) are retried with
// backoff; everything else returns an error for the caller to surface as
// reply content.
func (c *Client) Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	var reply string
	err := retry.Do(ctx, retry.Config{MaxAttempts: 2, InitialDelay: time.Second,
		ShouldRetry: func(err error) bool {
			se, ok := err.(*statusError)
			return !ok || retry.RetryableStatus(se.code)
		},
	}, func() error {
		var attemptErr error
		reply, attemptErr = c.completeOnce(ctx, messages, sampling)
		return attemptErr
	})
	return reply, err
}

func (c *Client) completeOnce(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	body := chatRequest{
		Model:            c.cfg.Model,
		Messages:         messages,
		Temperature:      sampling.Temperature,
		FrequencyPenalty: sampling.FrequencyPenalty,
		PresencePenalty:  sampling.PresencePenalty,
		MaxTokens:        sampling.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response body: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("llm: decode API response (HTTP %d): %w", resp.StatusCode, err)
	}

	if chatResp.Error != nil {
		return "", &statusError{code: resp.StatusCode,
			msg: fmt.Sprintf("llm: API error (%s): %s", chatResp.Error.Type, chatResp.Error.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode,
			msg: fmt.Sprintf("llm: unexpected HTTP status %d", resp.StatusCode)}
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

package memory

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
	defaultEmbeddingModel   = "all-minilm"
	defaultEmbeddingTimeout = 30 * time.Second
)

// HTTPEmbedderConfig configures the OpenAI-compatible embeddings client.
type HTTPEmbedderConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8080/v1. The client
	// posts to BaseURL + "/embeddings".
	BaseURL string

	// APIKey is the optional bearer token. Local model servers usually
	// accept requests without one.
	APIKey string

	// Model is the embedding model name. Defaults to all-minilm, the local
	// sentence-embedding model the finalizer indexes with.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// HTTPEmbedder implements Embedder against an OpenAI-compatible embeddings
// endpoint (llama.cpp server, Ollama, LM Studio, or the hosted APIs).
// Transient failures (429, 5xx, connection errors) are retried with backoff.
type HTTPEmbedder struct {
	cfg    HTTPEmbedderConfig
	client *http.Client
}

// NewHTTPEmbedder creates an Embedder backed by an OpenAI-compatible
// embeddings API. The returned embedder is safe for concurrent use.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) *HTTPEmbedder {
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal embeddings wire types ---

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// statusError carries an HTTP status for retry classification.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// Embed produces a vector embedding for the given text. Empty text yields a
// nil vector without calling the endpoint.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	var vec []float32
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond,
		ShouldRetry: func(err error) bool {
			se, ok := err.(*statusError)
			return !ok || retry.RetryableStatus(se.code)
		},
	}, func() error {
		var attemptErr error
		vec, attemptErr = e.embedOnce(ctx, text)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *HTTPEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body := embeddingRequest{Input: text, Model: e.cfg.Model}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/embeddings",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response body: %w", err)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}

	if embResp.Error != nil {
		return nil, &statusError{code: resp.StatusCode,
			msg: fmt.Sprintf("embedder: API error (%s): %s", embResp.Error.Type, embResp.Error.Message)}
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode,
			msg: fmt.Sprintf("embedder: unexpected HTTP status %d", resp.StatusCode)}
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embedder: no embedding data returned")
	}

	return embResp.Data[0].Embedding, nil
}

var _ Embedder = (*HTTPEmbedder)(nil)

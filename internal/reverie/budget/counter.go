package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Counter estimates the token length of a text. Implementations never fail:
// any internal error degrades to 0 so budget computation always proceeds.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates token counts without a tokenizer: roughly four
// characters per token, plus a small per-text overhead for role framing.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 4
}

// Remote counts tokens against a llama.cpp-style /tokenize endpoint. Any
// failure (connection, non-200, malformed body) returns 0; the heuristic
// fallback is the caller's choice, not this type's.
type Remote struct {
	// URL is the full tokenize endpoint, e.g. http://localhost:8080/tokenize.
	URL string

	// Timeout bounds each request. Defaults to 10 s.
	Timeout time.Duration

	Logger *slog.Logger

	client *http.Client
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

func (r *Remote) Count(text string) int {
	if text == "" {
		return 0
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.client == nil {
		timeout := r.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		r.client = &http.Client{Timeout: timeout}
	}

	data, err := json.Marshal(tokenizeRequest{Content: text})
	if err != nil {
		return 0
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, r.URL, bytes.NewReader(data))
	if err != nil {
		logger.Warn("budget: tokenize request build failed", "err", err)
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Warn("budget: tokenize call failed", "err", err)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("budget: tokenize returned non-200", "status", resp.StatusCode)
		return 0
	}
	var tr tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		logger.Warn("budget: tokenize response malformed", "err", err)
		return 0
	}
	return len(tr.Tokens)
}

var (
	_ Counter = Heuristic{}
	_ Counter = (*Remote)(nil)
)

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

func TestCompressor_ShrinksText(t *testing.T) {
	var gotMax []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotMax = append(gotMax, req.MaxTokens)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Content: "short summary"}}},
		})
	}))
	defer srv.Close()

	text := strings.Repeat("Bob went to the market and bought fish. ", 20)
	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}

	out := c.Compress(context.Background(), text)
	if out != "short summary" {
		t.Errorf("out = %q", out)
	}
	if len(gotMax) != 1 {
		t.Fatalf("calls = %d, want 1", len(gotMax))
	}
	want := len(text) / 4
	if gotMax[0] != want {
		t.Errorf("max_tokens = %d, want %d (25%% of input)", gotMax[0], want)
	}
}

func TestCompressor_FloorAppliesToShortInput(t *testing.T) {
	var gotMax int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotMax = req.MaxTokens
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Content: "s"}}},
		})
	}))
	defer srv.Close()

	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}
	c.Compress(context.Background(), "tiny input")
	if gotMax != 64 {
		t.Errorf("max_tokens = %d, want the 64-token floor", gotMax)
	}
}

func TestCompressor_RetriesWhenBarelyShrunk(t *testing.T) {
	text := strings.Repeat("x", 100)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		reply := strings.Repeat("y", 95) // 95% of input, not shrunk enough
		if calls == 2 {
			reply = "tight summary"
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Content: reply}}},
		})
	}))
	defer srv.Close()

	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}
	out := c.Compress(context.Background(), text)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if out != "tight summary" {
		t.Errorf("out = %q", out)
	}
}

func TestCompressor_AcceptsSecondAttemptEvenIfLong(t *testing.T) {
	text := strings.Repeat("x", 100)
	long := strings.Repeat("y", 98)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Content: long}}},
		})
	}))
	defer srv.Close()

	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}
	out := c.Compress(context.Background(), text)
	if calls != 2 {
		t.Errorf("calls = %d, want exactly 2 (no retry loop)", calls)
	}
	if out != long {
		t.Errorf("out = %q, want the second attempt accepted as-is", out)
	}
}

func TestCompressor_NeverGrowsInput(t *testing.T) {
	text := "Hi."
	padded := strings.Repeat("an extremely wordy non-summary ", 8)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: Message{Content: padded}}},
		})
	}))
	defer srv.Close()

	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}
	out := c.Compress(context.Background(), text)
	if calls != 2 {
		t.Errorf("calls = %d, want exactly 2 (no retry loop)", calls)
	}
	if out != text {
		t.Errorf("out = %q, want the original back when every attempt is longer", out)
	}
}

func TestCompressor_FailureReturnsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(chatResponse{
			Error: &struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}{Message: "bad request", Type: "invalid_request_error"},
		})
	}))
	defer srv.Close()

	text := "the original context block"
	c := &Compressor{Client: NewClient(ClientConfig{URL: srv.URL}), Counter: charCounter{}}
	if out := c.Compress(context.Background(), text); out != text {
		t.Errorf("out = %q, want original text on API failure", out)
	}
}

func TestCompressor_EmptyInput(t *testing.T) {
	c := &Compressor{Counter: charCounter{}}
	if out := c.Compress(context.Background(), ""); out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}

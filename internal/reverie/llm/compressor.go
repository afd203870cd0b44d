package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// TokenCounter estimates token lengths for compression targets.
type TokenCounter interface {
	Count(text string) int
}

// Compressor shrinks a raw text blob to a fraction of its size by asking the
// model for a dense summary. Compression failure is never fatal: any API
// error returns the original text unchanged.
type Compressor struct {
	Client  *Client
	Counter TokenCounter

	// Ratio is the target output size as a fraction of the input token
	// count. Zero means the 0.25 default.
	Ratio float64

	// Floor is the minimum output token budget, so very short inputs are
	// not squeezed into uselessly small summaries. Zero means 64.
	Floor int

	Logger *slog.Logger
}

const compressPrompt = `Condense the following text into a dense factual monologue.
Keep every name, relationship, event, and stated fact. Drop pleasantries,
repetition, and filler. Write plain prose, no headings or bullets.

TEXT:
%s`

const compressPromptStrict = `Condense the following text. Your previous attempt was too long.
Output MUST be much shorter than the input. Keep only names, relationships,
and concrete events, in terse prose.

TEXT:
%s`

// Compress returns a summary of text targeting Ratio of its token count.
// If the first attempt is not meaningfully shorter (90% or more of the
// original length) a single stricter retry is made and its result accepted.
// An accepted result that counts more tokens than the input is discarded in
// favor of the original text, so compression never grows the payload. On API
// failure the original text comes back unchanged.
func (c *Compressor) Compress(ctx context.Context, text string) string {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if text == "" {
		return text
	}

	ratio := c.Ratio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.25
	}
	floor := c.Floor
	if floor <= 0 {
		floor = 64
	}

	original := c.Counter.Count(text)
	target := int(float64(original) * ratio)
	if target < floor {
		target = floor
	}

	out, err := c.compressOnce(ctx, fmt.Sprintf(compressPrompt, text), target)
	if err != nil {
		logger.Warn("llm: compression failed, keeping original text", "err", err)
		return text
	}

	if len(out) >= len(text)*9/10 {
		logger.Debug("llm: compression barely shrank input, retrying stricter",
			"in_len", len(text), "out_len", len(out))
		retryOut, err := c.compressOnce(ctx, fmt.Sprintf(compressPromptStrict, text), target*3/4)
		if err != nil {
			return out
		}
		out = retryOut
	}

	if got := c.Counter.Count(out); got > original {
		logger.Warn("llm: compression grew the text, keeping original",
			"in_tokens", original, "out_tokens", got)
		return text
	}

	logger.Debug("llm: compressed context block",
		"in_tokens", original, "out_tokens", c.Counter.Count(out))
	return out
}

func (c *Compressor) compressOnce(ctx context.Context, prompt string, maxTokens int) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: "You compress role-play context. You never invent facts."},
		{Role: RoleUser, Content: prompt},
	}
	return c.Client.Complete(ctx, messages, Sampling{Temperature: 0.2, MaxTokens: maxTokens})
}

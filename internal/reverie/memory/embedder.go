package memory

import "context"

// Embedder produces vector embeddings for text. The production implementation
// calls an OpenAI-compatible embeddings endpoint; NoopEmbedder disables
// retrieval entirely by returning nil vectors.
type Embedder interface {
	// Embed produces a normalized vector embedding for the given text.
	// Returns nil with no error when embedding is not available (noop).
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoopEmbedder is the default when no embedding endpoint is configured.
// Retrieval degrades to an empty selection.
type NoopEmbedder struct{}

// Embed always returns a nil vector and no error.
func (NoopEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, nil
}

var _ Embedder = NoopEmbedder{}

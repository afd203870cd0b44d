// Package vectorindex implements the flat nearest-neighbor index used for
// memory retrieval.
//
// Embeddings are assumed normalized, so inner product is the similarity
// measure. At the expected scale (hundreds of memories per character) a
// brute-force scan in Go is fast and keeps the on-disk contract a plain
// binary file that the finalizer writes and the chat pipeline reads.
package vectorindex

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// index dimension.
var ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

// Flat is an exact inner-product index over row-ordered vectors. Row
// positions are the join key to the external mapping list; the index itself
// knows nothing about memory records.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Add appends a vector as the next row. The row position of the vector is
// Len() before the call.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("%w: got %d, index dim %d", ErrDimensionMismatch, len(vec), f.dim)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	f.vectors = append(f.vectors, cp)
	return nil
}

// Search returns the top-k rows by inner product with query, scores
// descending. Ties keep insertion order, so retrieval ranking is
// deterministic. k larger than the index is clamped; an empty index or
// mismatched query yields empty results.
func (f *Flat) Search(query []float32, k int) (scores []float32, indices []int) {
	if k <= 0 || len(f.vectors) == 0 || len(query) != f.dim {
		return nil, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	type scored struct {
		row   int
		score float32
	}
	all := make([]scored, len(f.vectors))
	for i, vec := range f.vectors {
		all[i] = scored{row: i, score: innerProduct(query, vec)}
	}

	// Insertion sort by descending score; the strict > comparison preserves
	// row order for equal scores.
	for i := 1; i < len(all); i++ {
		key := all[i]
		j := i - 1
		for j >= 0 && all[j].score < key.score {
			all[j+1] = all[j]
			j--
		}
		all[j+1] = key
	}

	scores = make([]float32, k)
	indices = make([]int, k)
	for i := 0; i < k; i++ {
		scores[i] = all[i].score
		indices[i] = all[i].row
	}
	return scores, indices
}

func innerProduct(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

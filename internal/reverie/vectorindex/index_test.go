package vectorindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFlat_SearchOrdersByScore(t *testing.T) {
	idx := NewFlat(2)
	for _, v := range [][]float32{
		{0.1, 0.0}, // low
		{0.9, 0.0}, // high
		{0.5, 0.0}, // mid
	} {
		if err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
	}

	scores, indices := idx.Search([]float32{1, 0}, 3)
	wantRows := []int{1, 2, 0}
	for i, want := range wantRows {
		if indices[i] != want {
			t.Fatalf("rank %d: expected row %d, got %d (scores %v)", i, want, indices[i], scores)
		}
	}
	if scores[0] < scores[1] || scores[1] < scores[2] {
		t.Errorf("scores not descending: %v", scores)
	}
}

func TestFlat_TiesPreserveInsertionOrder(t *testing.T) {
	idx := NewFlat(2)
	// Three identical vectors: all tie.
	for i := 0; i < 3; i++ {
		if err := idx.Add([]float32{0.5, 0.5}); err != nil {
			t.Fatal(err)
		}
	}
	_, indices := idx.Search([]float32{1, 0}, 3)
	for i, want := range []int{0, 1, 2} {
		if indices[i] != want {
			t.Fatalf("tied rows must keep insertion order, got %v", indices)
		}
	}
}

func TestFlat_KClampedToLen(t *testing.T) {
	idx := NewFlat(2)
	_ = idx.Add([]float32{1, 0})
	scores, indices := idx.Search([]float32{1, 0}, 10)
	if len(scores) != 1 || len(indices) != 1 {
		t.Fatalf("expected 1 result, got %d", len(indices))
	}
}

func TestFlat_DefensiveSearchInputs(t *testing.T) {
	idx := NewFlat(2)
	if s, i := idx.Search([]float32{1, 0}, 5); s != nil || i != nil {
		t.Error("empty index should return nil results")
	}
	_ = idx.Add([]float32{1, 0})
	if s, _ := idx.Search([]float32{1, 0, 0}, 5); s != nil {
		t.Error("mismatched query dimension should return nil results")
	}
	if s, _ := idx.Search([]float32{1, 0}, 0); s != nil {
		t.Error("k=0 should return nil results")
	}
}

func TestFlat_AddDimensionMismatch(t *testing.T) {
	idx := NewFlat(3)
	err := idx.Add([]float32{1, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	idx := NewFlat(3)
	rows := [][]float32{
		{0.1, 0.2, 0.3},
		{-1, 0, 1},
		{0.5, 0.5, 0.5},
	}
	for _, v := range rows {
		if err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "memory_index.bin")
	if err := idx.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if loaded.Dim() != 3 || loaded.Len() != 3 {
		t.Fatalf("expected dim 3 len 3, got dim %d len %d", loaded.Dim(), loaded.Len())
	}

	// Search order must survive the round trip.
	_, before := idx.Search([]float32{0.5, 0.5, 0.5}, 3)
	_, after := loaded.Search([]float32{0.5, 0.5, 0.5}, 3)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("search order changed after round trip: %v vs %v", before, after)
		}
	}
}

func TestReadFile_RejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	if err := os.WriteFile(path, []byte("NOPE\x00\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

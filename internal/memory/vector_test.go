package memory

import (
	"context"
	"math"
	"testing"
)

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	blob, err := encodeEmbedding(in)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if len(blob) != dimHeader+4*len(in) {
		t.Fatalf("blob length = %d", len(blob))
	}
	out, err := decodeEmbedding(blob)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestEncodeEmbeddingRejectsBadInput(t *testing.T) {
	if _, err := encodeEmbedding(nil); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := encodeEmbedding([]float32{float32(math.NaN())}); err == nil {
		t.Error("expected error for NaN")
	}
}

func TestDecodeEmbeddingRejectsTruncatedBlob(t *testing.T) {
	blob, _ := encodeEmbedding([]float32{1, 2})
	if _, err := decodeEmbedding(blob[:len(blob)-1]); err == nil {
		t.Error("expected error for truncated blob")
	}
	if _, err := decodeEmbedding([]byte{1}); err == nil {
		t.Error("expected error for short blob")
	}
}

func TestCosine(t *testing.T) {
	if s, ok := cosine([]float32{1, 0}, []float32{1, 0}); !ok || math.Abs(s-1) > 1e-9 {
		t.Errorf("identical = %v, %v", s, ok)
	}
	if s, ok := cosine([]float32{1, 0}, []float32{0, 1}); !ok || math.Abs(s) > 1e-9 {
		t.Errorf("orthogonal = %v, %v", s, ok)
	}
	if _, ok := cosine([]float32{1, 0}, []float32{1, 0, 0}); ok {
		t.Error("dimension mismatch should not compare")
	}
	if _, ok := cosine([]float32{0, 0}, []float32{1, 0}); ok {
		t.Error("zero vector should not compare")
	}
}

func TestSQLiteEpisodesSearchOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewSQLiteEpisodes(newTestEngine(t))

	eps := []Episode{
		{ID: "s_1", Document: "far", Embedding: []float32{0, 1}, SessionID: "s", Timestamp: "1"},
		{ID: "s_2", Document: "near", Embedding: []float32{1, 0.1}, SessionID: "s", Timestamp: "2"},
		{ID: "s_3", Document: "mid", Embedding: []float32{1, 1}, SessionID: "s", Timestamp: "3"},
		{ID: "s_4", Document: "other dim", Embedding: []float32{1, 0, 0}, SessionID: "s", Timestamp: "4"},
	}
	for _, ep := range eps {
		if err := idx.Add(ctx, ep); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	// duplicate ids are ignored
	if err := idx.Add(ctx, eps[0]); err != nil {
		t.Fatalf("Add duplicate error: %v", err)
	}

	n, _ := idx.Count(ctx)
	if n != 4 {
		t.Fatalf("count = %d, want 4", n)
	}

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 2 || hits[0].Document != "near" || hits[1].Document != "mid" {
		t.Fatalf("hits = %+v", hits)
	}

	if err := idx.Reset(ctx); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	n, _ = idx.Count(ctx)
	if n != 0 {
		t.Fatalf("count after reset = %d", n)
	}
}

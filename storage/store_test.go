package storage

import (
	"context"
	"math"
	"testing"

	"videoReason/core"
)

type fakeTextEmbedder struct {
	vector []float32
}

func (f *fakeTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func vec(id string, values []float32, start, end float64) core.EmbeddingVector {
	return core.EmbeddingVector{
		ID:        id,
		Embedding: values,
		Metadata: core.VectorMetadata{
			StartTime: start,
			EndTime:   end,
			VideoURI:  "gs://bucket/video.mp4",
		},
	}
}

func TestStubQueryCannedResults(t *testing.T) {
	s := NewStubVectorStore("demo-bucket")

	hits, err := s.Query(context.Background(), "what was promised?", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}

	wantScores := []float64{0.85, 0.78, 0.72}
	wantStarts := []float64{10.0, 45.0, 120.0}
	wantEnds := []float64{25.0, 60.0, 135.0}
	for i, hit := range hits {
		if hit.Score != wantScores[i] {
			t.Errorf("hit %d score = %.2f, want %.2f", i, hit.Score, wantScores[i])
		}
		if hit.StartTime != wantStarts[i] || hit.EndTime != wantEnds[i] {
			t.Errorf("hit %d bounds = (%.1f, %.1f), want (%.1f, %.1f)",
				i, hit.StartTime, hit.EndTime, wantStarts[i], wantEnds[i])
		}
		if hit.VideoURI != "gs://demo-bucket/Avea-Demo.mp4" {
			t.Errorf("hit %d uri = %q", i, hit.VideoURI)
		}
	}
}

func TestStubQueryTopKCap(t *testing.T) {
	s := NewStubVectorStore("demo-bucket")

	hits, err := s.Query(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits for top_k=1", len(hits))
	}
	if hits[0].Score != 0.85 {
		t.Errorf("top hit score = %.2f, want the best canned score", hits[0].Score)
	}

	hits, err = s.Query(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits for top_k=10, stub only has 3", len(hits))
	}
}

func TestStubUpsertRejectsMixedDimensions(t *testing.T) {
	s := NewStubVectorStore("demo-bucket")
	batch := []core.EmbeddingVector{
		vec("segment_0", make([]float32, 8), 0, 5),
		vec("segment_1", make([]float32, 4), 5, 10),
	}
	if err := s.Upsert(context.Background(), batch); err == nil {
		t.Error("mixed-dimension batch accepted, want error")
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	s := NewMemoryVectorStore(&fakeTextEmbedder{vector: []float32{1, 0, 0}})
	batch := []core.EmbeddingVector{
		vec("segment_0", []float32{1, 0, 0}, 0, 5),
		vec("segment_1", []float32{0, 1, 0}, 5, 10),
	}

	if err := s.Upsert(context.Background(), batch); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(context.Background(), batch); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d after re-upsert of same ids, want 2", s.Len())
	}
}

func TestMemoryUpsertRejectsDimensionDrift(t *testing.T) {
	s := NewMemoryVectorStore(&fakeTextEmbedder{vector: []float32{1, 0, 0}})
	if err := s.Upsert(context.Background(), []core.EmbeddingVector{
		vec("segment_0", []float32{1, 0, 0}, 0, 5),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(context.Background(), []core.EmbeddingVector{
		vec("segment_1", []float32{1, 0}, 5, 10),
	}); err == nil {
		t.Error("vector with different dimension accepted into populated index")
	}
}

func TestMemoryQueryOrdering(t *testing.T) {
	s := NewMemoryVectorStore(&fakeTextEmbedder{vector: []float32{1, 0, 0}})
	batch := []core.EmbeddingVector{
		vec("far", []float32{0, 1, 0}, 0, 5),
		vec("close", []float32{0.9, 0.1, 0}, 5, 10),
		vec("exact", []float32{1, 0, 0}, 10, 15),
	}
	if err := s.Upsert(context.Background(), batch); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := s.Query(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want top_k cap of 2", len(hits))
	}
	if hits[0].ID != "exact" || hits[1].ID != "close" {
		t.Errorf("order = [%s, %s], want [exact, close]", hits[0].ID, hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not in descending score order")
	}
	if math.Abs(hits[0].Score-1.0) > 1e-9 {
		t.Errorf("exact match score = %f, want 1.0", hits[0].Score)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("cosine = %f, want %f", got, tc.want)
			}
		})
	}
}

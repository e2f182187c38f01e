package storage

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"videoReason/config"
	"videoReason/core"
)

// QueryEmbedder turns query text into a vector in the same embedding
// space as the stored video segments. The multimodal embedder's text
// mode implements this; a separate text model would break the
// uniform-dimensionality invariant between stored and query vectors.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorStore abstracts the similarity index backend.
type VectorStore interface {
	// Upsert must be idempotent under id collision: re-upserting the
	// same id updates rather than duplicates.
	Upsert(ctx context.Context, vectors []core.EmbeddingVector) error
	// Query returns at most topK segments ordered by descending score.
	Query(ctx context.Context, query string, topK int) ([]core.RetrievedSegment, error)
}

// NewVectorStore selects the backend from Settings.Store. Failure to
// reach a real backend falls back to the stub so startup never breaks
// on an unconfigured index.
func NewVectorStore(ctx context.Context, cfg *config.Settings, embedder QueryEmbedder) VectorStore {
	switch cfg.Store {
	case "pgvector":
		s, err := NewPgVectorStore(ctx, cfg, embedder)
		if err != nil {
			log.Printf("Warning: Failed to initialize pgvector store (%v), falling back to stub store", err)
			return NewStubVectorStore(cfg.BucketName)
		}
		return s
	case "milvus":
		s, err := NewMilvusVectorStore(ctx, cfg, embedder)
		if err != nil {
			log.Printf("Warning: Failed to initialize Milvus store (%v), falling back to stub store", err)
			return NewStubVectorStore(cfg.BucketName)
		}
		return s
	case "memory":
		return NewMemoryVectorStore(embedder)
	default:
		return NewStubVectorStore(cfg.BucketName)
	}
}

// uniformDims rejects batches whose vectors disagree on dimensionality.
// One index instance holds exactly one embedding space.
func uniformDims(vectors []core.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0].Embedding)
	for _, v := range vectors {
		if len(v.Embedding) != dim {
			return fmt.Errorf("vector %s has dimension %d, batch expects %d", v.ID, len(v.Embedding), dim)
		}
	}
	return nil
}

// ---------------- Stub implementation ----------------

// StubVectorStore stands in for a deployed Vector Search index. Upsert
// only records that ingestion happened; Query returns fixed canned
// results regardless of query text, so callers get a deterministic
// valid shape without any index infrastructure.
type StubVectorStore struct {
	mu       sync.Mutex
	bucket   string
	upserted int
}

func NewStubVectorStore(bucket string) *StubVectorStore {
	return &StubVectorStore{bucket: bucket}
}

func (s *StubVectorStore) Upsert(ctx context.Context, vectors []core.EmbeddingVector) error {
	if err := uniformDims(vectors); err != nil {
		return err
	}
	s.mu.Lock()
	s.upserted += len(vectors)
	s.mu.Unlock()
	log.Printf("Generated %d embeddings (vector search upsert simulated)", len(vectors))
	return nil
}

func (s *StubVectorStore) Query(ctx context.Context, query string, topK int) ([]core.RetrievedSegment, error) {
	log.Printf("Querying stub vector store with: %q", query)

	uri := fmt.Sprintf("gs://%s/Avea-Demo.mp4", s.bucket)
	canned := []core.RetrievedSegment{
		{ID: "segment_0", Score: 0.85, StartTime: 10.0, EndTime: 25.0, VideoURI: uri},
		{ID: "segment_1", Score: 0.78, StartTime: 45.0, EndTime: 60.0, VideoURI: uri},
		{ID: "segment_2", Score: 0.72, StartTime: 120.0, EndTime: 135.0, VideoURI: uri},
	}
	if topK < len(canned) {
		canned = canned[:topK]
	}
	return canned, nil
}

// ---------------- Memory implementation ----------------

// MemoryVectorStore is a real in-process nearest-neighbor index over
// cosine similarity. Kept for local runs and tests.
type MemoryVectorStore struct {
	mu       sync.RWMutex
	embedder QueryEmbedder
	vectors  map[string]core.EmbeddingVector
}

func NewMemoryVectorStore(embedder QueryEmbedder) *MemoryVectorStore {
	return &MemoryVectorStore{
		embedder: embedder,
		vectors:  make(map[string]core.EmbeddingVector),
	}
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, vectors []core.EmbeddingVector) error {
	if err := uniformDims(vectors); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(s.vectors) > 0 {
			for _, existing := range s.vectors {
				if len(existing.Embedding) != len(v.Embedding) {
					return fmt.Errorf("vector %s has dimension %d, index holds %d", v.ID, len(v.Embedding), len(existing.Embedding))
				}
				break
			}
		}
		s.vectors[v.ID] = v
	}
	return nil
}

func (s *MemoryVectorStore) Query(ctx context.Context, query string, topK int) ([]core.RetrievedSegment, error) {
	qv, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]core.RetrievedSegment, 0, len(s.vectors))
	for _, v := range s.vectors {
		hits = append(hits, core.RetrievedSegment{
			ID:        v.ID,
			Score:     cosine(qv, v.Embedding),
			StartTime: v.Metadata.StartTime,
			EndTime:   v.Metadata.EndTime,
			VideoURI:  v.Metadata.VideoURI,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// Len reports the number of stored vectors.
func (s *MemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

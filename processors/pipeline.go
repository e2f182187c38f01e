package processors

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"videoReason/config"
	"videoReason/core"
	"videoReason/storage"
)

// Stage interfaces let the orchestrator be exercised without any cloud
// collaborator behind it.

type shotSegmenter interface {
	Segment(ctx context.Context, uri string) ([]core.Segment, error)
}

type segmentEmbedder interface {
	EmbedSegment(ctx context.Context, uri string, startSec, endSec float64) ([]float32, error)
}

type segmentAnalyzer interface {
	Analyze(ctx context.Context, seg core.RetrievedSegment) core.AnalysisOutcome
}

// Pipeline sequences segmentation, embedding, indexing, retrieval and
// per-segment analysis. One logical thread of control per invocation;
// every loop is deliberately sequential so ordering stays reproducible
// and external rate limits are respected.
type Pipeline struct {
	media     storage.MediaStore
	segmenter shotSegmenter
	embedder  segmentEmbedder
	index     storage.VectorStore
	analyzer  segmentAnalyzer

	pacing time.Duration
	sleep  func(time.Duration)
}

// NewPipeline wires every collaborator from validated settings. Any
// client construction failure surfaces here, before the first run.
func NewPipeline(ctx context.Context, cfg *config.Settings) (*Pipeline, error) {
	media, err := storage.NewGCSMediaStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	annotator, err := NewVideoIntelligenceAnnotator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := NewSegmentEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reasoner, err := NewGeminiReasoner(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Printf("Initialized pipeline: project=%s, region=%s, bucket=%s, store=%s",
		cfg.ProjectID, cfg.Region, cfg.BucketName, cfg.Store)

	return &Pipeline{
		media:     media,
		segmenter: NewShotSegmenter(annotator, cfg.SegmentTimeout()),
		embedder:  embedder,
		index:     storage.NewVectorStore(ctx, cfg, embedder),
		analyzer:  NewSegmentAnalyzer(media, reasoner, cfg),
		pacing:    cfg.AnalysisPacing(),
		sleep:     time.Sleep,
	}, nil
}

// ProcessVideo ingests one video: upload if local, detect shots, embed
// every segment and push the whole batch to the similarity index in a
// single upsert. Ingestion is all-or-nothing; a partially indexed
// video is not useful, so the first stage failure aborts the run.
func (p *Pipeline) ProcessVideo(ctx context.Context, videoPath string) (string, error) {
	runID := uuid.NewString()
	log.Printf("Starting video processing pipeline (run %s)", runID)

	uri := videoPath
	if !storage.IsRemote(videoPath) {
		uploaded, err := p.media.Upload(ctx, videoPath)
		if err != nil {
			return "", &core.IngestionError{Stage: "upload", Err: err}
		}
		uri = uploaded
	}

	segments, err := p.segmenter.Segment(ctx, uri)
	if err != nil {
		return "", &core.IngestionError{Stage: "segment", Err: err}
	}

	log.Println("Generating embeddings for all segments...")
	vectors := make([]core.EmbeddingVector, 0, len(segments))
	for i, seg := range segments {
		log.Printf("Processing segment %d/%d", i+1, len(segments))
		embedding, err := p.embedder.EmbedSegment(ctx, uri, seg.Start, seg.End)
		if err != nil {
			return "", &core.IngestionError{Stage: "embed", Err: fmt.Errorf("segment %d: %w", i, err)}
		}
		vectors = append(vectors, core.EmbeddingVector{
			ID:        core.SegmentID(i),
			Embedding: embedding,
			Metadata: core.VectorMetadata{
				StartTime: seg.Start,
				EndTime:   seg.End,
				VideoURI:  uri,
			},
		})
	}

	if err := p.index.Upsert(ctx, vectors); err != nil {
		return "", &core.IngestionError{Stage: "store", Err: err}
	}

	log.Printf("Video processing pipeline complete (run %s)", runID)
	return uri, nil
}

// QueryAndAnalyze retrieves the segments most similar to the query and
// analyzes each sequentially. A fixed pacing delay precedes every
// analyzer call except the first. Analyzer failures degrade per
// segment instead of aborting: the returned slice always has exactly
// one entry per retrieved segment, in retrieval order.
func (p *Pipeline) QueryAndAnalyze(ctx context.Context, query string, topK int) ([]core.AnalysisResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}
	log.Printf("Starting query analysis: %q", query)

	hits, err := p.index.Query(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("query similarity index: %w", err)
	}

	results := make([]core.AnalysisResult, 0, len(hits))
	for i, hit := range hits {
		log.Printf("Analyzing segment %d/%d", i+1, len(hits))
		if i > 0 {
			p.sleep(p.pacing)
		}
		outcome := p.analyzer.Analyze(ctx, hit)
		if outcome.Degraded {
			log.Printf("Segment %s degraded: %s", hit.ID, outcome.Reason)
		}
		results = append(results, outcome.Result)
	}

	log.Println("Query analysis complete")
	return results, nil
}

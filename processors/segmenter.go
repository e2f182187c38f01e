package processors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	video "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"google.golang.org/api/option"

	"videoReason/config"
	"videoReason/core"
)

// minSegmentDuration is the floor for shots fed to the embedding
// model; anything shorter gets its end extended.
const minSegmentDuration = 1.0

// ShotAnnotator runs the asynchronous shot-boundary-detection job and
// blocks until the raw boundary pairs are available.
type ShotAnnotator interface {
	AnnotateShots(ctx context.Context, uri string) ([]core.Segment, error)
}

// VideoIntelligenceAnnotator detects shot changes with the Video
// Intelligence API.
type VideoIntelligenceAnnotator struct {
	client *video.Client
}

func NewVideoIntelligenceAnnotator(ctx context.Context, cfg *config.Settings) (*VideoIntelligenceAnnotator, error) {
	c, err := video.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("create video intelligence client: %w", err)
	}
	return &VideoIntelligenceAnnotator{client: c}, nil
}

func (a *VideoIntelligenceAnnotator) Close() error { return a.client.Close() }

func (a *VideoIntelligenceAnnotator) AnnotateShots(ctx context.Context, uri string) ([]core.Segment, error) {
	op, err := a.client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputUri: uri,
		Features: []videointelligencepb.Feature{videointelligencepb.Feature_SHOT_CHANGE_DETECTION},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate video: %w", err)
	}

	log.Println("Waiting for video annotation to complete...")
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for annotation: %w", err)
	}

	results := resp.GetAnnotationResults()
	if len(results) == 0 {
		return nil, nil
	}

	shots := results[0].GetShotAnnotations()
	segments := make([]core.Segment, 0, len(shots))
	for _, shot := range shots {
		segments = append(segments, core.Segment{
			Start: shot.GetStartTimeOffset().AsDuration().Seconds(),
			End:   shot.GetEndTimeOffset().AsDuration().Seconds(),
		})
	}
	return segments, nil
}

// ShotSegmenter wraps an annotator with the bounded wait and the
// minimum-duration rule.
type ShotSegmenter struct {
	annotator ShotAnnotator
	timeout   time.Duration
}

func NewShotSegmenter(annotator ShotAnnotator, timeout time.Duration) *ShotSegmenter {
	return &ShotSegmenter{annotator: annotator, timeout: timeout}
}

// Segment detects shots for uri and returns them in temporal order.
// Exceeding the bounded wait maps to core.ErrSegmentationTimeout and
// zero detected shots to core.ErrNoShots; both are fatal to ingestion.
func (s *ShotSegmenter) Segment(ctx context.Context, uri string) ([]core.Segment, error) {
	log.Println("Starting video segmentation...")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.annotator.AnnotateShots(ctx, uri)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", core.ErrSegmentationTimeout, s.timeout)
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, core.ErrNoShots
	}

	segments := make([]core.Segment, 0, len(raw))
	for i, seg := range raw {
		if seg.End-seg.Start < minSegmentDuration {
			seg.End = seg.Start + minSegmentDuration
		}
		log.Printf("Segment %d: start=%.1fs, end=%.1fs, duration=%.1fs", i+1, seg.Start, seg.End, seg.End-seg.Start)
		segments = append(segments, seg)
	}

	log.Printf("Found %d shot segments", len(segments))
	return segments, nil
}

package core

import "fmt"

// ========== Pipeline data model ==========

// Segment is one detected shot, in seconds from the start of the video.
// Insertion order equals temporal order.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// VectorMetadata travels with every stored embedding so query results
// can be resolved back to a playable clip.
type VectorMetadata struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	VideoURI  string  `json:"video_uri"`
}

// EmbeddingVector is one segment's feature vector plus its metadata.
// IDs follow the deterministic segment_{i} scheme per ingestion run.
type EmbeddingVector struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  VectorMetadata `json:"metadata"`
}

// SegmentID builds the deterministic vector id for segment index i.
func SegmentID(i int) string { return fmt.Sprintf("segment_%d", i) }

// RetrievedSegment is one similarity-search hit. Score is in [0,1],
// lists arrive sorted by descending score.
type RetrievedSegment struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	VideoURI  string  `json:"video_uri"`
}

// AnalysisResult is the terminal output record. Three front-ends
// consume this shape verbatim; field names and types are fixed.
type AnalysisResult struct {
	ClipStart       float64  `json:"clip_start"`
	ClipEnd         float64  `json:"clip_end"`
	Summary         string   `json:"summary"`
	Promises        []string `json:"promises"`
	BodyLanguage    string   `json:"body_language"`
	ConfidenceScore float64  `json:"confidence_score"`
	Actions         []string `json:"actions"`
}

// AnalysisOutcome wraps one analyzer call. Degraded outcomes still
// carry a structurally valid result; Reason explains the recovered
// failure so callers can log it without parsing Summary.
type AnalysisOutcome struct {
	Result   AnalysisResult `json:"result"`
	Degraded bool           `json:"degraded"`
	Reason   string         `json:"reason,omitempty"`
}

// DegradedAnalysis builds the placeholder result for a failed analyzer
// call: summary carries the failure reason, confidence drops to 0.5.
func DegradedAnalysis(seg RetrievedSegment, reason string) AnalysisOutcome {
	return AnalysisOutcome{
		Result: AnalysisResult{
			ClipStart:       seg.StartTime,
			ClipEnd:         seg.EndTime,
			Summary:         fmt.Sprintf("Analysis failed: %s", reason),
			Promises:        []string{},
			BodyLanguage:    "Analysis failed",
			ConfidenceScore: 0.5,
			Actions:         []string{},
		},
		Degraded: true,
		Reason:   reason,
	}
}

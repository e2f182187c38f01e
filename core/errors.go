package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline stages. Ingestion-stage errors are
// fatal to the whole run; ErrMediaNotReady is recovered per segment.
var (
	ErrSegmentationTimeout = errors.New("shot detection timed out")
	ErrNoShots             = errors.New("no shots detected")
	ErrEmbeddingExtraction = errors.New("unrecognized embedding response")
	ErrMediaNotReady       = errors.New("media did not become active")
)

// IngestionError marks a fatal failure inside ProcessVideo. Stage is
// one of "upload", "segment", "embed", "store".
type IngestionError struct {
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"videoReason/config"
	"videoReason/core"
)

const embedScope = "https://www.googleapis.com/auth/cloud-platform"

// SegmentEmbedder calls the multimodal embedding model's predict
// endpoint for video ranges and for query text. Both modes return
// vectors in the same embedding space.
type SegmentEmbedder struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	endpoint    string
}

func NewSegmentEmbedder(ctx context.Context, cfg *config.Settings) (*SegmentEmbedder, error) {
	data, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, embedScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	endpoint := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		cfg.Region, cfg.ProjectID, cfg.Region, cfg.EmbeddingModel,
	)
	return &SegmentEmbedder{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		tokenSource: creds.TokenSource,
		endpoint:    endpoint,
	}, nil
}

// ---------------- request/response wire shapes ----------------

type predictRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedInstance struct {
	Text  string         `json:"text,omitempty"`
	Video *videoInstance `json:"video,omitempty"`
}

type videoInstance struct {
	GCSURI        string         `json:"gcsUri"`
	SegmentConfig *segmentConfig `json:"videoSegmentConfig,omitempty"`
}

type segmentConfig struct {
	StartOffsetSec int `json:"startOffsetSec"`
	EndOffsetSec   int `json:"endOffsetSec"`
}

type predictResponse struct {
	Predictions []embeddingPrediction `json:"predictions"`
}

// embeddingPrediction covers the response variants the model is known
// to produce. Extraction probes the tagged fields in a fixed priority
// order instead of sniffing dynamically.
type embeddingPrediction struct {
	VideoEmbeddings []videoEmbedding `json:"videoEmbeddings"`
	TextEmbedding   []float32        `json:"textEmbedding"`
}

type videoEmbedding struct {
	Embedding      []float32 `json:"embedding"`
	Values         []float32 `json:"values"`
	StartOffsetSec float64   `json:"startOffsetSec"`
	EndOffsetSec   float64   `json:"endOffsetSec"`
}

// clampRange truncates fractional bounds to integer seconds and keeps
// the range non-empty: the 1.0s minimum-duration rule upstream can
// still collapse to zero width after flooring.
func clampRange(startSec, endSec float64) (int, int) {
	startInt := int(startSec)
	endInt := int(endSec)
	if endInt <= startInt {
		endInt = startInt + 1
	}
	return startInt, endInt
}

// extractEmbedding probes the known response variants in priority
// order: structured video embedding, alternate values field, then the
// text-embedding fallback.
func extractEmbedding(p embeddingPrediction) ([]float32, error) {
	if len(p.VideoEmbeddings) > 0 {
		ve := p.VideoEmbeddings[0]
		if len(ve.Embedding) > 0 {
			return ve.Embedding, nil
		}
		if len(ve.Values) > 0 {
			return ve.Values, nil
		}
		return nil, fmt.Errorf("%w: video embedding present but empty", core.ErrEmbeddingExtraction)
	}
	if len(p.TextEmbedding) > 0 {
		return p.TextEmbedding, nil
	}
	return nil, fmt.Errorf("%w: no known embedding field", core.ErrEmbeddingExtraction)
}

// EmbedSegment computes the feature vector for one range of a stored
// video. The model accepts integer-second boundaries only.
func (e *SegmentEmbedder) EmbedSegment(ctx context.Context, uri string, startSec, endSec float64) ([]float32, error) {
	startInt, endInt := clampRange(startSec, endSec)
	log.Printf("Embedding segment: start=%d, end=%d", startInt, endInt)

	req := predictRequest{Instances: []embedInstance{{
		Video: &videoInstance{
			GCSURI:        uri,
			SegmentConfig: &segmentConfig{StartOffsetSec: startInt, EndOffsetSec: endInt},
		},
	}}}
	return e.predict(ctx, req)
}

// EmbedText computes the query-text vector in the shared space.
func (e *SegmentEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	req := predictRequest{Instances: []embedInstance{{Text: text}}}
	return e.predict(ctx, req)
}

func (e *SegmentEmbedder) predict(ctx context.Context, req predictRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	token, err := e.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch access token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("predict call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predict call failed: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse predict response: %w", err)
	}
	if len(parsed.Predictions) == 0 {
		return nil, fmt.Errorf("%w: no predictions returned", core.ErrEmbeddingExtraction)
	}

	vec, err := extractEmbedding(parsed.Predictions[0])
	if err != nil {
		return nil, err
	}
	log.Printf("Generated %d-dimensional embedding", len(vec))
	return vec, nil
}

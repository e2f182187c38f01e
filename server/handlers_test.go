package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"videoReason/core"
)

type fakePipeline struct {
	uri        string
	processErr error
	analyses   []core.AnalysisResult
	queryErr   error
	gotQuery   string
	gotTopK    int
}

func (f *fakePipeline) ProcessVideo(ctx context.Context, videoPath string) (string, error) {
	if f.processErr != nil {
		return "", f.processErr
	}
	return f.uri, nil
}

func (f *fakePipeline) QueryAndAnalyze(ctx context.Context, query string, topK int) ([]core.AnalysisResult, error) {
	f.gotQuery = query
	f.gotTopK = topK
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.analyses, nil
}

type fakeAnswerer struct {
	answer string
}

func (f *fakeAnswerer) Synthesize(ctx context.Context, question string, analyses []core.AnalysisResult) string {
	return f.answer
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	s.Routes(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := New(&fakePipeline{}, nil, "stub")
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" || resp["store"] != "stub" {
		t.Errorf("resp = %v", resp)
	}
}

func TestProcessVideoMethodNotAllowed(t *testing.T) {
	s := New(&fakePipeline{}, nil, "stub")
	rec := doRequest(t, s, http.MethodGet, "/process-video", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestProcessVideoValidation(t *testing.T) {
	s := New(&fakePipeline{}, nil, "stub")

	rec := doRequest(t, s, http.MethodPost, "/process-video", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/process-video", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing video_path: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/process-video", `{"video_path": "/nonexistent/video.mp4"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing local file: status = %d, want 400", rec.Code)
	}
}

func TestProcessVideoSuccess(t *testing.T) {
	s := New(&fakePipeline{uri: "gs://bucket/video.mp4"}, nil, "stub")
	rec := doRequest(t, s, http.MethodPost, "/process-video", `{"video_path": "gs://bucket/video.mp4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp ProcessVideoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoURI != "gs://bucket/video.mp4" {
		t.Errorf("uri = %q", resp.VideoURI)
	}
	if len(resp.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(resp.Steps))
	}
	for _, step := range resp.Steps {
		if step.Status != "completed" {
			t.Errorf("step %s status = %q", step.Name, step.Status)
		}
	}
}

func TestProcessVideoFailedStage(t *testing.T) {
	s := New(&fakePipeline{
		processErr: &core.IngestionError{Stage: "embed", Err: errors.New("predict failed")},
	}, nil, "stub")

	rec := doRequest(t, s, http.MethodPost, "/process-video", `{"video_path": "gs://bucket/video.mp4"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var resp ProcessVideoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	wantStatus := map[string]string{"upload": "completed", "segment": "completed", "embed": "failed"}
	if len(resp.Steps) != 3 {
		t.Fatalf("got %d steps, want report to stop at the failed stage", len(resp.Steps))
	}
	for _, step := range resp.Steps {
		if step.Status != wantStatus[step.Name] {
			t.Errorf("step %s status = %q, want %q", step.Name, step.Status, wantStatus[step.Name])
		}
	}
	if resp.Steps[2].Error == "" {
		t.Error("failed step should carry the error text")
	}
}

func TestQueryValidation(t *testing.T) {
	s := New(&fakePipeline{}, nil, "stub")

	rec := doRequest(t, s, http.MethodGet, "/query", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/query", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query: status = %d, want 400", rec.Code)
	}
}

func TestQuerySuccess(t *testing.T) {
	analyses := []core.AnalysisResult{
		{ClipStart: 10, ClipEnd: 25, Summary: "demo of upload flow", ConfidenceScore: 0.8},
	}
	pipeline := &fakePipeline{analyses: analyses}
	s := New(pipeline, &fakeAnswerer{answer: "The clip shows the upload flow."}, "stub")

	rec := doRequest(t, s, http.MethodPost, "/query", `{"query": "what was shown?", "top_k": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if pipeline.gotQuery != "what was shown?" || pipeline.gotTopK != 2 {
		t.Errorf("pipeline got (%q, %d)", pipeline.gotQuery, pipeline.gotTopK)
	}

	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "The clip shows the upload flow." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Analyses) != 1 || resp.Analyses[0].Summary != "demo of upload flow" {
		t.Errorf("analyses = %+v", resp.Analyses)
	}
}

func TestQueryTopKDefault(t *testing.T) {
	pipeline := &fakePipeline{}
	s := New(pipeline, nil, "stub")

	rec := doRequest(t, s, http.MethodPost, "/query", `{"query": "anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if pipeline.gotTopK != 3 {
		t.Errorf("default top_k = %d, want 3", pipeline.gotTopK)
	}
}

func TestQueryPipelineError(t *testing.T) {
	s := New(&fakePipeline{queryErr: errors.New("index unavailable")}, nil, "stub")
	rec := doRequest(t, s, http.MethodPost, "/query", `{"query": "anything"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"videoReason/core"
	"videoReason/storage"
)

// VideoPipeline is the orchestrator surface the handlers depend on.
type VideoPipeline interface {
	ProcessVideo(ctx context.Context, videoPath string) (string, error)
	QueryAndAnalyze(ctx context.Context, query string, topK int) ([]core.AnalysisResult, error)
}

// AnswerSynthesizer folds analyses into a single answer string.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, analyses []core.AnalysisResult) string
}

// Server exposes the pipeline over HTTP. It is one of three
// presentation layers over the same AnalysisResult contract.
type Server struct {
	pipeline VideoPipeline
	answerer AnswerSynthesizer
	store    string
}

func New(pipeline VideoPipeline, answerer AnswerSynthesizer, store string) *Server {
	return &Server{pipeline: pipeline, answerer: answerer, store: store}
}

// Routes registers every handler on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/process-video", s.processVideoHandler)
	mux.HandleFunc("/query", s.queryHandler)
	mux.HandleFunc("/health", s.healthHandler)
}

type ProcessVideoRequest struct {
	VideoPath string `json:"video_path"`
}

type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "completed", "failed"
	Error  string `json:"error,omitempty"`
}

type ProcessVideoResponse struct {
	VideoURI string `json:"video_uri,omitempty"`
	Message  string `json:"message"`
	Steps    []Step `json:"steps"`
}

func (s *Server) processVideoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ProcessVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.VideoPath == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video_path is required"})
		return
	}
	if !storage.IsRemote(req.VideoPath) {
		if _, err := os.Stat(req.VideoPath); os.IsNotExist(err) {
			core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video file not found: " + req.VideoPath})
			return
		}
	}

	uri, err := s.pipeline.ProcessVideo(r.Context(), req.VideoPath)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, ProcessVideoResponse{
			Message: "Video processing failed",
			Steps:   ingestionSteps(err),
		})
		return
	}

	core.WriteJSON(w, http.StatusOK, ProcessVideoResponse{
		VideoURI: uri,
		Message:  "Video processing completed successfully",
		Steps:    ingestionSteps(nil),
	})
}

// ingestionSteps reconstructs the step report from the typed ingestion
// error: everything before the failed stage completed, everything at
// and after it did not run to completion.
func ingestionSteps(err error) []Step {
	order := []string{"upload", "segment", "embed", "store"}

	failedStage := ""
	if err != nil {
		var ingErr *core.IngestionError
		if errors.As(err, &ingErr) {
			failedStage = ingErr.Stage
		} else {
			failedStage = order[0]
		}
	}

	steps := make([]Step, 0, len(order))
	for _, name := range order {
		switch {
		case failedStage == "":
			steps = append(steps, Step{Name: name, Status: "completed"})
		case name == failedStage:
			steps = append(steps, Step{Name: name, Status: "failed", Error: err.Error()})
			return steps
		default:
			steps = append(steps, Step{Name: name, Status: "completed"})
		}
	}
	return steps
}

type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type QueryResponse struct {
	Query    string                `json:"query"`
	Answer   string                `json:"answer"`
	Analyses []core.AnalysisResult `json:"analyses"`
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Query == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}

	analyses, err := s.pipeline.QueryAndAnalyze(r.Context(), req.Query, req.TopK)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	answer := ""
	if s.answerer != nil {
		answer = s.answerer.Synthesize(r.Context(), req.Query, analyses)
	}

	core.WriteJSON(w, http.StatusOK, QueryResponse{
		Query:    req.Query,
		Answer:   answer,
		Analyses: analyses,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.store,
	})
}

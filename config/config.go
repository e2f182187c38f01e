package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Settings holds every knob the pipeline needs. It is constructed once
// at process start and passed by reference into the collaborators; no
// package-level instance exists.
type Settings struct {
	// GCP
	ProjectID       string `json:"project_id"`
	Region          string `json:"region"`
	BucketName      string `json:"bucket_name"`
	CredentialsPath string `json:"credentials_path"`

	// Gemini reasoning model
	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`

	// Multimodal embedding model
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`

	// Similarity index backend: "stub", "memory", "pgvector", "milvus"
	Store            string `json:"store"`
	PostgresURL      string `json:"postgres_url"`
	MilvusAddr       string `json:"milvus_addr"`
	MilvusCollection string `json:"milvus_collection"`
	MilvusUsername   string `json:"milvus_username"`
	MilvusPassword   string `json:"milvus_password"`
	MilvusAPIKey     string `json:"milvus_api_key"`

	// Vector Search endpoint identifiers. Optional: absence keeps the
	// stub index rather than failing startup.
	VectorSearchEndpointID      string `json:"vector_search_endpoint_id"`
	VectorSearchDeployedIndexID string `json:"vector_search_deployed_index_id"`

	// Chat model for answer synthesis. Optional: absence falls back to
	// simple concatenation.
	ChatAPIKey  string `json:"chat_api_key"`
	ChatBaseURL string `json:"chat_base_url"`
	ChatModel   string `json:"chat_model"`

	// Pacing and bounded waits, seconds
	SegmentTimeoutSec int `json:"segment_timeout_sec"`
	PollIntervalSec   int `json:"poll_interval_sec"`
	PollCeilingSec    int `json:"poll_ceiling_sec"`
	AnalysisPacingSec int `json:"analysis_pacing_sec"`
}

// Load reads config.json if present, then overrides every field from
// environment variables. The result is not validated; call Validate.
func Load() (*Settings, error) {
	s := defaults()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}
	s.applyEnv()
	s.fillDefaults()
	return s, nil
}

func defaults() *Settings {
	return &Settings{
		Region:            "us-central1",
		GeminiModel:       "gemini-2.5-flash",
		EmbeddingModel:    "multimodalembedding@001",
		EmbeddingDim:      1408,
		Store:             "stub",
		MilvusCollection:  "video_segments",
		SegmentTimeoutSec: 300,
		PollIntervalSec:   2,
		PollCeilingSec:    60,
		AnalysisPacingSec: 1,
	}
}

func (s *Settings) applyEnv() {
	setIfEnv(&s.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setIfEnv(&s.Region, "GCP_REGION")
	setIfEnv(&s.BucketName, "GCS_BUCKET_NAME")
	setIfEnv(&s.CredentialsPath, "GOOGLE_APPLICATION_CREDENTIALS")
	setIfEnv(&s.GeminiAPIKey, "GEMINI_API_KEY")
	setIfEnv(&s.GeminiModel, "GEMINI_MODEL")
	setIfEnv(&s.EmbeddingModel, "EMBEDDING_MODEL")
	setIfEnv(&s.Store, "STORE")
	setIfEnv(&s.PostgresURL, "DATABASE_URL")
	setIfEnv(&s.MilvusAddr, "MILVUS_ADDR")
	setIfEnv(&s.MilvusCollection, "MILVUS_COLLECTION")
	setIfEnv(&s.MilvusUsername, "MILVUS_USERNAME")
	setIfEnv(&s.MilvusPassword, "MILVUS_PASSWORD")
	setIfEnv(&s.MilvusAPIKey, "MILVUS_API_KEY")
	setIfEnv(&s.VectorSearchEndpointID, "VECTOR_SEARCH_INDEX_ENDPOINT_ID")
	setIfEnv(&s.VectorSearchDeployedIndexID, "VECTOR_SEARCH_DEPLOYED_INDEX_ID")
	setIfEnv(&s.ChatAPIKey, "API_KEY")
	setIfEnv(&s.ChatBaseURL, "BASE_URL")
	setIfEnv(&s.ChatModel, "CHAT_MODEL")
}

func (s *Settings) fillDefaults() {
	d := defaults()
	if s.Region == "" {
		s.Region = d.Region
	}
	if s.GeminiModel == "" {
		s.GeminiModel = d.GeminiModel
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = d.EmbeddingModel
	}
	if s.EmbeddingDim <= 0 {
		s.EmbeddingDim = d.EmbeddingDim
	}
	if s.Store == "" {
		s.Store = d.Store
	}
	if s.MilvusCollection == "" {
		s.MilvusCollection = d.MilvusCollection
	}
	if s.SegmentTimeoutSec <= 0 {
		s.SegmentTimeoutSec = d.SegmentTimeoutSec
	}
	if s.PollIntervalSec <= 0 {
		s.PollIntervalSec = d.PollIntervalSec
	}
	if s.PollCeilingSec <= 0 {
		s.PollCeilingSec = d.PollCeilingSec
	}
	if s.AnalysisPacingSec <= 0 {
		s.AnalysisPacingSec = d.AnalysisPacingSec
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks every required setting eagerly so the pipeline fails
// fast at construction instead of mid-run.
func (s *Settings) Validate() error {
	var missing []string

	if strings.TrimSpace(s.ProjectID) == "" {
		missing = append(missing, "project_id (GOOGLE_CLOUD_PROJECT)")
	}
	if strings.TrimSpace(s.BucketName) == "" {
		missing = append(missing, "bucket_name (GCS_BUCKET_NAME)")
	}
	if strings.TrimSpace(s.CredentialsPath) == "" {
		missing = append(missing, "credentials_path (GOOGLE_APPLICATION_CREDENTIALS)")
	}
	if strings.TrimSpace(s.GeminiAPIKey) == "" {
		missing = append(missing, "gemini_api_key (GEMINI_API_KEY)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("configuration validation failed: missing %s", strings.Join(missing, "; "))
	}
	return nil
}

// HasChatAPI reports whether answer synthesis can use a chat model.
func (s *Settings) HasChatAPI() bool {
	return strings.TrimSpace(s.ChatAPIKey) != "" && strings.TrimSpace(s.ChatModel) != ""
}

// Duration accessors keep the seconds-based config surface in one place.

func (s *Settings) SegmentTimeout() time.Duration {
	return time.Duration(s.SegmentTimeoutSec) * time.Second
}

func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

func (s *Settings) PollCeiling() time.Duration {
	return time.Duration(s.PollCeilingSec) * time.Second
}

func (s *Settings) AnalysisPacing() time.Duration {
	return time.Duration(s.AnalysisPacingSec) * time.Second
}

// PrintConfigInstructions explains the required configuration when
// validation fails at startup.
func PrintConfigInstructions() {
	fmt.Println("\n=== Configuration ===")
	fmt.Println("Set the following in config.json or the environment:")
	fmt.Println("1. project_id / GOOGLE_CLOUD_PROJECT: GCP project ID")
	fmt.Println("2. bucket_name / GCS_BUCKET_NAME: GCS bucket for videos")
	fmt.Println("3. credentials_path / GOOGLE_APPLICATION_CREDENTIALS: service account key file")
	fmt.Println("4. gemini_api_key / GEMINI_API_KEY: Gemini API key")
	fmt.Println("5. region / GCP_REGION: GCP region (default: us-central1)")
	fmt.Println("6. store / STORE: similarity index backend (stub/memory/pgvector/milvus, default: stub)")
	fmt.Println("=====================")
}

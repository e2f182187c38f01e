package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host configuration does
// not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_CLOUD_PROJECT", "GCP_REGION", "GCS_BUCKET_NAME",
		"GOOGLE_APPLICATION_CREDENTIALS", "GEMINI_API_KEY", "GEMINI_MODEL",
		"EMBEDDING_MODEL", "STORE", "DATABASE_URL",
		"MILVUS_ADDR", "MILVUS_COLLECTION", "MILVUS_USERNAME",
		"MILVUS_PASSWORD", "MILVUS_API_KEY",
		"VECTOR_SEARCH_INDEX_ENDPOINT_ID", "VECTOR_SEARCH_DEPLOYED_INDEX_ID",
		"API_KEY", "BASE_URL", "CHAT_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Region != "us-central1" {
		t.Errorf("Region = %q, want us-central1", s.Region)
	}
	if s.Store != "stub" {
		t.Errorf("Store = %q, want stub", s.Store)
	}
	if s.EmbeddingModel != "multimodalembedding@001" {
		t.Errorf("EmbeddingModel = %q", s.EmbeddingModel)
	}
	if s.EmbeddingDim != 1408 {
		t.Errorf("EmbeddingDim = %d, want 1408", s.EmbeddingDim)
	}
	if s.SegmentTimeout() != 300*time.Second {
		t.Errorf("SegmentTimeout = %s, want 300s", s.SegmentTimeout())
	}
	if s.PollInterval() != 2*time.Second || s.PollCeiling() != 60*time.Second {
		t.Errorf("poll settings = (%s, %s), want (2s, 60s)", s.PollInterval(), s.PollCeiling())
	}
	if s.AnalysisPacing() != time.Second {
		t.Errorf("AnalysisPacing = %s, want 1s", s.AnalysisPacing())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLOUD_PROJECT", "test-project")
	t.Setenv("GCP_REGION", "europe-west4")
	t.Setenv("STORE", "memory")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ProjectID != "test-project" {
		t.Errorf("ProjectID = %q", s.ProjectID)
	}
	if s.Region != "europe-west4" {
		t.Errorf("Region = %q, env must override the default", s.Region)
	}
	if s.Store != "memory" {
		t.Errorf("Store = %q", s.Store)
	}
}

func TestValidateCollectsAllMissing(t *testing.T) {
	clearEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = s.Validate()
	if err == nil {
		t.Fatal("empty settings validated, want error")
	}
	for _, field := range []string{"project_id", "bucket_name", "credentials_path", "gemini_api_key"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("validation error does not name %s: %v", field, err)
		}
	}
}

func TestValidateComplete(t *testing.T) {
	s := &Settings{
		ProjectID:       "p",
		BucketName:      "b",
		CredentialsPath: "/tmp/creds.json",
		GeminiAPIKey:    "key",
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestHasChatAPI(t *testing.T) {
	s := &Settings{}
	if s.HasChatAPI() {
		t.Error("empty chat config reported as usable")
	}
	s.ChatAPIKey = "key"
	if s.HasChatAPI() {
		t.Error("chat key without model reported as usable")
	}
	s.ChatModel = "gpt-4o-mini"
	if !s.HasChatAPI() {
		t.Error("complete chat config reported as unusable")
	}
}

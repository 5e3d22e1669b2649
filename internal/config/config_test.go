package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Generation: GenerationConfig{
			Models:       []string{"llama3.1:8b", "qwen2.5:14b"},
			DefaultModel: "llama3.1:8b",
		},
		Search: SearchConfig{DefaultLimit: 10, MaxLimit: 50},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_InvalidDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero embedding dimensions")
	}
}

func TestValidate_NoGenerationModels(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.Models = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty generation models")
	}
}

func TestValidate_DefaultModelFallsBackToFirst(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.DefaultModel = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.DefaultModel != "llama3.1:8b" {
		t.Errorf("expected default model to fall back to first, got %q", cfg.Generation.DefaultModel)
	}
}

func TestValidate_DefaultModelNotInSet(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.DefaultModel = "mystery:1b"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default model outside the recognized set")
	}
}

func TestValidate_DefaultLimitAboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 100
	cfg.Search.MaxLimit = 50

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default_limit > max_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Index.HNSWEFConstruct)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected Provider='openai', got %q", cfg.Embedding.Provider)
	}
	if cfg.Generation.PromptCharBudget != 24000 {
		t.Errorf("expected PromptCharBudget=24000, got %d", cfg.Generation.PromptCharBudget)
	}
	if cfg.Generation.TimeoutSec != 60 {
		t.Errorf("expected TimeoutSec=60, got %d", cfg.Generation.TimeoutSec)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("expected DefaultLimit=10, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.MaxLimit != 50 {
		t.Errorf("expected MaxLimit=50, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Evidence.MaxPerCategory != 20 {
		t.Errorf("expected MaxPerCategory=20, got %d", cfg.Evidence.MaxPerCategory)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Index:    IndexConfig{HNSWM: 16, HNSWEFConstruct: 200},
		Search:   SearchConfig{DefaultLimit: 5, MaxLimit: 25},
		Evidence: EvidenceConfig{MaxPerCategory: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Index.HNSWM)
	}
	if cfg.Search.MaxLimit != 25 {
		t.Errorf("expected MaxLimit=25, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Evidence.MaxPerCategory != 8 {
		t.Errorf("expected MaxPerCategory=8, got %d", cfg.Evidence.MaxPerCategory)
	}
}

package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingValkeyAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing valkey addrs")
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "memory"
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "qdrant"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), `"qdrant"`) {
		t.Errorf("error should name the driver, got %q", err.Error())
	}
}

func TestValidate_OverlapNotBelowChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.RAG.ChunkSize = 100
	cfg.RAG.ChunkOverlap = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestValidate_Departments(t *testing.T) {
	tests := []struct {
		name    string
		depts   []DepartmentConfig
		wantErr bool
	}{
		{"ok", []DepartmentConfig{{ID: "it", TenantID: "acme"}, {ID: "it", TenantID: "globex"}}, false},
		{"missing tenant", []DepartmentConfig{{ID: "it"}}, true},
		{"duplicate", []DepartmentConfig{{ID: "it", TenantID: "acme"}, {ID: "it", TenantID: "acme"}}, true},
		{"threshold above one", []DepartmentConfig{{ID: "it", TenantID: "acme", ConfidenceThreshold: 1.5}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Departments = tt.depts
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.KeyPrefix != "kops:" {
		t.Errorf("expected KeyPrefix='kops:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.RAG.ChunkSize != 512 || cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("expected chunk 512/50, got %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 5 || cfg.RAG.MaxContextTokens != 2000 {
		t.Errorf("expected top_k=5 max_context_tokens=2000, got %d/%d", cfg.RAG.TopK, cfg.RAG.MaxContextTokens)
	}
	if *cfg.RAG.RelevanceFloor != 0.3 || *cfg.RAG.VerifiedBoost != 0.15 {
		t.Errorf("expected floor 0.3 boost 0.15, got %v/%v", *cfg.RAG.RelevanceFloor, *cfg.RAG.VerifiedBoost)
	}
	c := cfg.Confidence
	if *c.Base != 0.5 || *c.RetrievalWeight != 0.3 || *c.LengthBonus != 0.1 || *c.HedgePenalty != 0.2 {
		t.Errorf("unexpected confidence weights: %v %v %v %v", *c.Base, *c.RetrievalWeight, *c.LengthBonus, *c.HedgePenalty)
	}
	if c.LengthThreshold != 100 || c.DefaultThreshold != 0.85 {
		t.Errorf("unexpected confidence thresholds: %+v", c)
	}
	if len(c.HedgePhrases) != 4 {
		t.Errorf("expected 4 hedge phrases, got %d", len(c.HedgePhrases))
	}
	if cfg.Timeouts.Generation().Seconds() != 60 {
		t.Errorf("expected generation timeout 60s, got %v", cfg.Timeouts.Generation())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15, HNSWM: 32},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
		RAG:      RAGConfig{TopK: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Database.HNSWM)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.RAG.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.RAG.TopK)
	}
}

func TestParse_ExplicitZeroWeightsKept(t *testing.T) {
	raw := []byte(`
database:
  driver: memory
rag:
  relevance_floor: 0
  verified_boost: 0
confidence:
  hedge_penalty: 0
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *cfg.RAG.RelevanceFloor != 0 || *cfg.RAG.VerifiedBoost != 0 {
		t.Errorf("explicit zeros replaced: floor=%v boost=%v", *cfg.RAG.RelevanceFloor, *cfg.RAG.VerifiedBoost)
	}
	if *cfg.Confidence.HedgePenalty != 0 {
		t.Errorf("explicit hedge_penalty 0 replaced by %v", *cfg.Confidence.HedgePenalty)
	}
	if *cfg.Confidence.Base != 0.5 {
		t.Errorf("omitted base should default to 0.5, got %v", *cfg.Confidence.Base)
	}
}

func TestParse_RejectsNegativeWeights(t *testing.T) {
	raw := []byte(`
database:
  driver: memory
rag:
  verified_boost: -0.1
`)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for negative verified_boost")
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("KOPS_TEST_PORT", "9090")

	raw := []byte(`
http:
  port: ${KOPS_TEST_PORT}
database:
  driver: ${KOPS_TEST_DRIVER:-memory}
departments:
  - id: it-ops
    tenant_id: acme
    kind: it-ops
    confidence_threshold: 0.9
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected driver memory, got %q", cfg.Database.Driver)
	}
	if len(cfg.Departments) != 1 || cfg.Departments[0].ConfidenceThreshold != 0.9 {
		t.Errorf("unexpected departments: %+v", cfg.Departments)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
)

// Config holds the knowledgeops service configuration.
type Config struct {
	HTTP        HTTPConfig         `yaml:"http"`
	Database    DatabaseConfig     `yaml:"database"`
	Storage     StorageConfig      `yaml:"storage"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	LLM         LLMConfig          `yaml:"llm"`
	RAG         RAGConfig          `yaml:"rag"`
	Confidence  ConfidenceConfig   `yaml:"confidence"`
	Timeouts    TimeoutsConfig     `yaml:"timeouts"`
	Departments []DepartmentConfig `yaml:"departments"`
	Auth        AuthConfig         `yaml:"auth"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	SQLitePath string `yaml:"sqlite_path"`
}

// EmbeddingConfig holds embedding provider and model settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Degraded            bool   `yaml:"degraded"` // random unit vectors, for dev without a model
	Cache               bool   `yaml:"cache"`
	CacheTTLHours       int    `yaml:"cache_ttl_hours"`
}

// LLMConfig holds the OpenAI-compatible chat backend settings (OpenAI, Ollama /v1).
type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	DefaultModel      string  `yaml:"default_model"`
	VisionModel       string  `yaml:"vision_model"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float32 `yaml:"temperature"`
}

// RAGConfig holds chunking and retrieval tuning.
type RAGConfig struct {
	ChunkSize        int     `yaml:"chunk_size"`    // tokens
	ChunkOverlap     int     `yaml:"chunk_overlap"` // tokens
	TopK             int     `yaml:"top_k"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	RelevanceFloor   *float64 `yaml:"relevance_floor"` // nil = default, 0 keeps every hit
	VerifiedBoost    *float64 `yaml:"verified_boost"`  // nil = default, 0 disables the boost
	UpsertBatchSize  int     `yaml:"upsert_batch_size"`
}

// ConfidenceConfig holds the confidence estimator weights.
type ConfidenceConfig struct {
	Base             *float64 `yaml:"base"` // weights: nil = default, 0 is a valid setting
	RetrievalWeight  *float64 `yaml:"retrieval_weight"`
	LengthBonus      *float64 `yaml:"length_bonus"`
	LengthThreshold  int      `yaml:"length_threshold"`
	HedgePenalty     *float64 `yaml:"hedge_penalty"`
	HedgePhrases     []string `yaml:"hedge_phrases"`
	DefaultThreshold float64  `yaml:"default_threshold"`
}

// TimeoutsConfig holds per-stage timeouts of the query pipeline, in seconds.
type TimeoutsConfig struct {
	RetrievalSec  int `yaml:"retrieval_sec"`
	GenerationSec int `yaml:"generation_sec"`
	VisionSec     int `yaml:"vision_sec"`
	EmbeddingSec  int `yaml:"embedding_sec"`
}

// Retrieval returns the retrieval timeout.
func (t TimeoutsConfig) Retrieval() time.Duration { return time.Duration(t.RetrievalSec) * time.Second }

// Generation returns the generation timeout.
func (t TimeoutsConfig) Generation() time.Duration { return time.Duration(t.GenerationSec) * time.Second }

// Vision returns the vision timeout.
func (t TimeoutsConfig) Vision() time.Duration { return time.Duration(t.VisionSec) * time.Second }

// Embedding returns the embedding timeout.
func (t TimeoutsConfig) Embedding() time.Duration { return time.Duration(t.EmbeddingSec) * time.Second }

// DepartmentConfig is one entry of the static department registry.
type DepartmentConfig struct {
	ID                  string  `yaml:"id"`
	TenantID            string  `yaml:"tenant_id"`
	Name                string  `yaml:"name"`
	Kind                string  `yaml:"kind"`
	Model               string  `yaml:"model"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	SystemPrompt        string  `yaml:"system_prompt"`
	TopK                int     `yaml:"top_k"`
	MaxContextTokens    int     `yaml:"max_context_tokens"`
	VisionEnabled       *bool   `yaml:"vision_enabled"` // default true
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, applying .env, ${VAR} substitution, defaults and validation.
func Parse(data []byte) (Config, error) {
	// .env is optional; real environment wins over it
	_ = godotenv.Load()

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.applyServerDefaults()
	c.applyModelDefaults()
	c.applyPipelineDefaults()
}

func (c *Config) applyServerDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // generation can be slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.KeyPrefix
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/knowledgeops.db"
	}
}

func (c *Config) applyModelDefaults() {
	vec := domain.DefaultVectorConfig()
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vec.Dimensions
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24 * 7
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "llama3.1:8b"
	}
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = "llava:7b"
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.1
	}
}

func (c *Config) applyPipelineDefaults() {
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 512
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = 50
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MaxContextTokens <= 0 {
		c.RAG.MaxContextTokens = 2000
	}
	defaultFloat(&c.RAG.RelevanceFloor, 0.3)
	defaultFloat(&c.RAG.VerifiedBoost, 0.15)
	if c.RAG.UpsertBatchSize <= 0 {
		c.RAG.UpsertBatchSize = 100
	}

	defaultFloat(&c.Confidence.Base, 0.5)
	defaultFloat(&c.Confidence.RetrievalWeight, 0.3)
	defaultFloat(&c.Confidence.LengthBonus, 0.1)
	if c.Confidence.LengthThreshold <= 0 {
		c.Confidence.LengthThreshold = 100
	}
	defaultFloat(&c.Confidence.HedgePenalty, 0.2)
	if len(c.Confidence.HedgePhrases) == 0 {
		c.Confidence.HedgePhrases = []string{"i'm not sure", "i don't know", "unclear", "cannot determine"}
	}
	if c.Confidence.DefaultThreshold <= 0 {
		c.Confidence.DefaultThreshold = 0.85
	}

	if c.Timeouts.RetrievalSec <= 0 {
		c.Timeouts.RetrievalSec = 10
	}
	if c.Timeouts.GenerationSec <= 0 {
		c.Timeouts.GenerationSec = 60
	}
	if c.Timeouts.VisionSec <= 0 {
		c.Timeouts.VisionSec = 30
	}
	if c.Timeouts.EmbeddingSec <= 0 {
		c.Timeouts.EmbeddingSec = 15
	}
}

func defaultFloat(p **float64, v float64) {
	if *p == nil {
		*p = &v
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be valkey, redis or memory, got %q", c.Database.Driver)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be less than rag.chunk_size (%d)",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.Confidence.DefaultThreshold > 1 {
		return fmt.Errorf("confidence.default_threshold must be in (0, 1], got %v", c.Confidence.DefaultThreshold)
	}
	if boost, floor := *c.RAG.VerifiedBoost, *c.RAG.RelevanceFloor; boost < 0 || boost > 1 || floor < 0 || floor >= 1 {
		return fmt.Errorf("rag.verified_boost must be in [0, 1] and rag.relevance_floor in [0, 1), got %v/%v", boost, floor)
	}
	for name, w := range map[string]float64{
		"base":             *c.Confidence.Base,
		"retrieval_weight": *c.Confidence.RetrievalWeight,
		"length_bonus":     *c.Confidence.LengthBonus,
		"hedge_penalty":    *c.Confidence.HedgePenalty,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("confidence.%s must be in [0, 1], got %v", name, w)
		}
	}

	seen := make(map[string]bool, len(c.Departments))
	for i, d := range c.Departments {
		if d.ID == "" || d.TenantID == "" {
			return fmt.Errorf("departments[%d]: id and tenant_id are required", i)
		}
		key := d.TenantID + "/" + d.ID
		if seen[key] {
			return fmt.Errorf("departments[%d]: duplicate department %s", i, key)
		}
		seen[key] = true
		if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
			return fmt.Errorf("departments[%d].confidence_threshold must be in [0, 1], got %v", i, d.ConfidenceThreshold)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration. Values are read from a
// YAML file with ${VAR} expansion, so secrets can stay in the
// environment.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Matching    MatchingConfig    `yaml:"matching"`
}

type ServerConfig struct {
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
}

type DatabaseConfig struct {
	URL string `yaml:"url,omitempty"` // falls back to DATABASE_URL
}

type EmbeddingsConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"` // OpenAI-compatible endpoint
	APIKeyEnv      string `yaml:"api_key_env,omitempty"`
	Model          string `yaml:"model,omitempty"`
	Dimensions     int    `yaml:"dimensions,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

func (c EmbeddingsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type VectorStoreConfig struct {
	// Backend selects the vector index: "qdrant" or "pgvector".
	Backend string       `yaml:"backend,omitempty"`
	Qdrant  QdrantConfig `yaml:"qdrant,omitempty"`
}

type QdrantConfig struct {
	URL            string `yaml:"url,omitempty"`
	APIKeyEnv      string `yaml:"api_key_env,omitempty"`
	Collection     string `yaml:"collection,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

func (c QdrantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type MatchingConfig struct {
	ResultLimit        int     `yaml:"result_limit,omitempty"`
	OverfetchFactor    int     `yaml:"overfetch_factor,omitempty"`
	ScoreThreshold     float64 `yaml:"score_threshold,omitempty"`
	DefaultSuccessRate float64 `yaml:"default_success_rate,omitempty"`
}

// Load reads the config file at path, expands ${VAR} references and
// fills in defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults plus environment are enough to run locally
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if cfg.VectorStore.Backend != "qdrant" && cfg.VectorStore.Backend != "pgvector" {
		return nil, fmt.Errorf("unknown vector_store backend %q", cfg.VectorStore.Backend)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Embeddings: EmbeddingsConfig{
			APIKeyEnv:      "OPENAI_API_KEY",
			Model:          "text-embedding-3-large",
			Dimensions:     3072,
			TimeoutSeconds: 30,
		},
		VectorStore: VectorStoreConfig{
			Backend: "qdrant",
			Qdrant: QdrantConfig{
				URL:            "http://localhost:6333",
				APIKeyEnv:      "QDRANT_API_KEY",
				Collection:     "grants",
				TimeoutSeconds: 15,
			},
		},
		Matching: MatchingConfig{
			ResultLimit:        10,
			OverfetchFactor:    3,
			ScoreThreshold:     0.35,
			DefaultSuccessRate: 0.60,
		},
	}
}

// applyEnv lets a few common environment variables override the file,
// matching how the server is usually deployed.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("VECTOR_STORE_BACKEND"); v != "" {
		c.VectorStore.Backend = v
	}
}

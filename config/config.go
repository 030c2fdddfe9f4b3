// Package config loads papermill's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/papermill/ai"
	"github.com/poiesic/papermill/storage/qdrant"
	"gopkg.in/yaml.v3"
)

// Vector store backends.
const (
	VectorStoreBadger = "badger"
	VectorStoreQdrant = "qdrant"
)

// Config is the full application configuration.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Summary      SummaryConfig      `yaml:"summary"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type JobsConfig struct {
	MaxJobs int    `yaml:"max_jobs"`
	LogDir  string `yaml:"log_dir"`
}

type SegmentationConfig struct {
	SegmentSize int `yaml:"segment_size"`
	Overlap     int `yaml:"overlap"`
}

// EmbeddingConfig describes the embedding service and batch size.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
}

// SummaryConfig describes the chat service used for summaries.
type SummaryConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	Temperature  float64       `yaml:"temperature"`
	ContextChars int           `yaml:"context_chars"`
}

type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant qdrant.Config `yaml:"qdrant"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{Path: "papermill.db"},
		Jobs: JobsConfig{
			MaxJobs: 8,
			LogDir:  ".pipeline_jobs",
		},
		Segmentation: SegmentationConfig{
			SegmentSize: 1200,
			Overlap:     200,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   aiCfg.EmbeddingHost,
			Model:     aiCfg.EmbeddingModel,
			Timeout:   aiCfg.EmbeddingTimeout,
			BatchSize: 16,
		},
		Summary: SummaryConfig{
			BaseURL:      aiCfg.ChatHost,
			Model:        aiCfg.ChatModel,
			Timeout:      aiCfg.ChatTimeout,
			Temperature:  aiCfg.Temperature,
			ContextChars: 4000,
		},
		VectorStore: VectorStoreConfig{
			Type: VectorStoreBadger,
			Qdrant: qdrant.Config{
				URL:        "http://localhost:6333",
				Collection: "paper_chunks",
				Timeout:    15 * time.Second,
			},
		},
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnv overrides service settings from LLM_* and EMBED_* variables.
// Embedding settings fall back to the LLM values when EMBED_* is unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get("LLM_BASE_URL"); ok {
		c.Summary.BaseURL = v
	}
	if v, ok := get("LLM_MODEL"); ok {
		c.Summary.Model = v
	}
	if v, ok := get("LLM_API_KEY"); ok {
		c.Summary.APIKey = v
	}
	if v, ok := get("EMBED_BASE_URL", "LLM_BASE_URL"); ok {
		c.Embedding.BaseURL = v
	}
	if v, ok := get("EMBED_MODEL"); ok {
		c.Embedding.Model = v
	}
	if v, ok := get("EMBED_API_KEY", "LLM_API_KEY"); ok {
		c.Embedding.APIKey = v
	}
	if v, ok := get("QDRANT_URL"); ok {
		c.VectorStore.Qdrant.URL = v
	}
	if v, ok := get("QDRANT_API_KEY"); ok {
		c.VectorStore.Qdrant.APIKey = v
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Jobs.MaxJobs == 0 {
		c.Jobs.MaxJobs = d.Jobs.MaxJobs
	}
	if c.Segmentation.SegmentSize == 0 {
		c.Segmentation.SegmentSize = d.Segmentation.SegmentSize
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = d.Embedding.BatchSize
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = d.Embedding.Timeout
	}
	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = d.Summary.Timeout
	}
	if c.Summary.ContextChars == 0 {
		c.Summary.ContextChars = d.Summary.ContextChars
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = d.VectorStore.Type
	}
	if c.VectorStore.Qdrant.Collection == "" {
		c.VectorStore.Qdrant.Collection = d.VectorStore.Qdrant.Collection
	}
}

// Validate checks values that cannot be corrected by defaults. Service
// credentials are checked later, by the job that needs them.
func (c *Config) Validate() error {
	if c.Jobs.MaxJobs < 1 {
		return fmt.Errorf("config: jobs.max_jobs must be at least 1, got %d", c.Jobs.MaxJobs)
	}
	switch c.VectorStore.Type {
	case VectorStoreBadger:
	case VectorStoreQdrant:
		if c.VectorStore.Qdrant.URL == "" {
			return errors.New("config: vector_store.qdrant.url is required")
		}
	default:
		return fmt.Errorf("config: unknown vector store %q", c.VectorStore.Type)
	}
	return nil
}

// AIConfig converts the service sections into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.BaseURL),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithChatHost(c.Summary.BaseURL),
		ai.WithChatModel(c.Summary.Model),
		ai.WithChatAPIKey(c.Summary.APIKey),
		ai.WithTimeouts(c.Embedding.Timeout, c.Summary.Timeout),
		ai.WithTemperature(c.Summary.Temperature),
	)
}

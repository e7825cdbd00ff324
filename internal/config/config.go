package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures the sliding-window chunker.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	TTLMinutes        int `yaml:"ttl_minutes"`
	MaxSessions       int `yaml:"max_sessions"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs"`
}

// ExtractionConfig bounds text extraction of uploads.
type ExtractionConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"`
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// RetrievalConfig tunes result counts and the usable-match threshold.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// OpenAIConfig holds settings shared by the OpenAI-compatible clients.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string        `yaml:"type"`
	Dimension         int           `yaml:"dimension"`
	BatchSize         int           `yaml:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	OpenAI            *OpenAIConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures answer generation.
type GeneratorConfig struct {
	Type         string        `yaml:"type"`
	MaxSentences int           `yaml:"max_sentences"`
	MaxTokens    int           `yaml:"max_tokens"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// SQLiteConfig points at the local vector database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PineconeConfig contains connection details for a Pinecone index. Index
// and key are normally supplied through the environment.
type PineconeConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	IndexEnv    string `yaml:"index_env"`
	Host        string `yaml:"host"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetryConfig controls orchestrator retries of remote failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retry       RetryConfig       `yaml:"retry"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Duration helpers keep the YAML in plain integers.

func (c SessionsConfig) TTL() time.Duration { return time.Duration(c.TTLMinutes) * time.Minute }
func (c SessionsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}
func (c ExtractionConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }
func (c ExtractionConfig) MaxUploadBytes() int64  { return int64(c.MaxUploadMB) << 20 }
func (c OpenAIConfig) Timeout() time.Duration     { return time.Duration(c.TimeoutSecs) * time.Second }
func (c QdrantConfig) Timeout() time.Duration     { return time.Duration(c.TimeoutSecs) * time.Second }
func (c PineconeConfig) Timeout() time.Duration   { return time.Duration(c.TimeoutSecs) * time.Second }
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunker:    ChunkerConfig{ChunkSize: 1000, Overlap: 200},
		Sessions:   SessionsConfig{TTLMinutes: 30, MaxSessions: 1000, SweepIntervalSecs: 60},
		Extraction: ExtractionConfig{TimeoutSecs: 20, MaxUploadMB: 25},
		Retrieval:  RetrievalConfig{TopK: 5},
		Embedder:   EmbedderConfig{Type: "hashing", Dimension: 512, BatchSize: 32},
		Generator:  GeneratorConfig{Type: "extractive", MaxSentences: 3},
		VectorStore: VectorStoreConfig{
			Type:   "memory",
			SQLite: &SQLiteConfig{Path: "docqa.db"},
		},
		Retry:  RetryConfig{MaxAttempts: 3, BaseDelayMS: 200, MaxDelayMS: 5000},
		Server: ServerConfig{Addr: ":8080", RequestTimeoutSecs: 120},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	for _, oc := range []*OpenAIConfig{cfg.Embedder.OpenAI, cfg.Generator.OpenAI} {
		if oc == nil {
			continue
		}
		if oc.BaseURL == "" {
			oc.BaseURL = "https://api.openai.com/v1"
		}
		if oc.APIKeyEnv == "" {
			oc.APIKeyEnv = "OPENAI_API_KEY"
		}
		if oc.TimeoutSecs == 0 {
			oc.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.OpenAI != nil && cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Generator.OpenAI != nil && cfg.Generator.OpenAI.Model == "" {
		cfg.Generator.OpenAI.Model = "gpt-4o-mini"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.APIKeyEnv == "" {
			q.APIKeyEnv = "QDRANT_API_KEY"
		}
		if q.Distance == "" {
			q.Distance = "Cosine"
		}
	}
	if p := cfg.VectorStore.Pinecone; p != nil {
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "PINECONE_API_KEY"
		}
		if p.IndexEnv == "" {
			p.IndexEnv = "PINECONE_INDEX"
		}
	}
}

// applyEnv lets deployments switch backend and address without editing YAML.
// Credentials are never copied into the config; they are read where used.
func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("DOCQA_VECTOR_STORE")); v != "" {
		cfg.VectorStore.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCQA_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	switch cfg.VectorStore.Type {
	case "pinecone":
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{URL: "http://localhost:6333", Collection: "docqa"}
		}
	}
	applyConfigDefaults(cfg)
}

// Package config loads Satori's .satori/project.yaml configuration file,
// with environment-variable overrides, mirroring the teacher's
// cmd/cie/config.go LoadConfig/DefaultConfig/applyEnvOverrides pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/satori/internal/errs"
)

const (
	defaultConfigDir  = ".satori"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .satori/project.yaml configuration file.
type Config struct {
	Version     string            `yaml:"version"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Reranker    RerankerConfig    `yaml:"reranker,omitempty"`
	Watcher     WatcherConfig     `yaml:"watcher,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, voyageai, gemini, ollama
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Provider string `yaml:"provider"` // milvus, zilliz
	Endpoint string `yaml:"endpoint,omitempty"`
	APIToken string `yaml:"api_token,omitempty"`
}

// IndexingConfig controls ignore patterns and file-extension handling.
type IndexingConfig struct {
	SchemaVersion     string   `yaml:"schema_version"`
	CustomExtensions  []string `yaml:"custom_extensions,omitempty"`
	IgnorePatterns    []string `yaml:"ignore_patterns,omitempty"`
	MaxFileSizeBytes  int64    `yaml:"max_file_size_bytes,omitempty"`
}

// RerankerConfig configures the optional neural reranker.
type RerankerConfig struct {
	VoyageAPIKey string `yaml:"voyage_api_key,omitempty"`
}

// WatcherConfig controls filesystem watcher behavior.
type WatcherConfig struct {
	Enabled     bool `yaml:"enabled"`
	DebounceMs  int  `yaml:"debounce_ms,omitempty"`
}

// DefaultConfig returns a config with sensible defaults for local development,
// using Ollama (no API key required) as the default embedding provider.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			BaseURL:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:      getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Dimensions: 768,
		},
		VectorStore: VectorStoreConfig{
			Provider: "milvus",
			Endpoint: getEnv("MILVUS_ADDRESS", ""),
			APIToken: getEnv("MILVUS_TOKEN", ""),
		},
		Indexing: IndexingConfig{
			SchemaVersion:    "hybrid_v3",
			MaxFileSizeBytes: 1048576,
		},
		Watcher: WatcherConfig{
			Enabled:    getEnv("MCP_ENABLE_WATCHER", "false") == "true",
			DebounceMs: 750,
		},
	}
}

// LoadConfig loads configuration from configPath, or auto-discovers
// .satori/project.yaml in the current and parent directories.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("SATORI_CONFIG")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errs.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors", configPath),
			err,
		)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// SaveConfig writes cfg to configPath as YAML, creating the directory if needed.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errs.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug; please report it",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errs.NewConfigError(
			"Cannot create configuration directory",
			fmt.Sprintf("Failed to create %s", dir),
			"Check directory permissions",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errs.NewConfigError(
			"Cannot write configuration file",
			fmt.Sprintf("Failed to write %s", configPath),
			"Check file permissions and available disk space",
			err,
		)
	}
	return nil
}

// ConfigPath returns <dir>/.satori/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns <dir>/.satori.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

func findConfigFile() (string, error) {
	if p := os.Getenv("SATORI_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", errs.NewConfigError(
			"Configuration file not found",
			fmt.Sprintf("SATORI_CONFIG is set to %q but the file does not exist", p),
			"Fix the SATORI_CONFIG environment variable or create the file",
			nil,
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errs.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		p := ConfigPath(dir)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errs.NewConfigError(
		"Configuration not found",
		"No .satori/project.yaml file found in current directory or any parent directory",
		"Create .satori/project.yaml, or rely on environment-variable defaults",
		nil,
	)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.Provider == "openai" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("VOYAGEAI_API_KEY"); v != "" {
		if c.Embedding.Provider == "voyageai" {
			c.Embedding.APIKey = v
		}
		c.Reranker.VoyageAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Embedding.Provider == "gemini" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		c.VectorStore.Endpoint = v
	}
	if v := os.Getenv("MILVUS_TOKEN"); v != "" {
		c.VectorStore.APIToken = v
	}
	if v := os.Getenv("ZILLIZ_API_KEY"); v != "" {
		c.VectorStore.Provider = "zilliz"
		c.VectorStore.APIToken = v
	}
	if v := os.Getenv("MCP_ENABLE_WATCHER"); v != "" {
		c.Watcher.Enabled = v == "true"
	}
	if v := os.Getenv("MCP_WATCH_DEBOUNCE_MS"); v != "" {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 0 {
			c.Watcher.DebounceMs = ms
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

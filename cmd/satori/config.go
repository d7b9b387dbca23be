package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	satoriconfig "github.com/kraklabs/satori/internal/config"
	"github.com/kraklabs/satori/internal/errs"
)

// configOutput mirrors satoriconfig.Config for JSON output, omitting API
// keys and tokens. Grounded on the teacher's cmd/cie/config_cmd.go
// ConfigOutput/EmbeddingOutput pattern.
type configOutput struct {
	ConfigPath  string             `json:"config_path"`
	Version     string             `json:"version"`
	Embedding   embeddingOutput    `json:"embedding"`
	VectorStore vectorStoreOutput  `json:"vector_store"`
	Indexing    indexingOutput     `json:"indexing"`
	Reranker    rerankerOutput     `json:"reranker"`
	Watcher     satoriconfig.WatcherConfig `json:"watcher"`
}

type embeddingOutput struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	// APIKey is intentionally omitted from JSON output for security.
}

type vectorStoreOutput struct {
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint,omitempty"`
	// APIToken is intentionally omitted from JSON output for security.
}

type indexingOutput struct {
	SchemaVersion    string   `json:"schema_version"`
	CustomExtensions []string `json:"custom_extensions,omitempty"`
	IgnorePatterns   []string `json:"ignore_patterns,omitempty"`
	MaxFileSizeBytes int64    `json:"max_file_size_bytes,omitempty"`
}

type rerankerOutput struct {
	Configured bool `json:"configured"`
	// VoyageAPIKey is intentionally omitted from JSON output for security.
}

// runConfig implements the "config" subcommand: load the effective
// configuration (explicit --config path, SATORI_CONFIG, or auto-discovered
// .satori/project.yaml) and print it as JSON, mirroring the teacher's
// "cie config --json".
func runConfig(flags wrapperFlags) {
	cfgPath := flags.ConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("SATORI_CONFIG")
	}
	if cfgPath != "" {
		if abs, err := filepath.Abs(cfgPath); err == nil {
			cfgPath = abs
		}
	}

	cfg, err := satoriconfig.LoadConfig(flags.ConfigPath)
	if err != nil {
		if ue, ok := errs.AsUserError(err); ok {
			fmt.Fprintln(os.Stderr, ue.Format(false))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	out := configOutput{
		ConfigPath: cfgPath,
		Version:    cfg.Version,
		Embedding: embeddingOutput{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			BaseURL:    cfg.Embedding.BaseURL,
		},
		VectorStore: vectorStoreOutput{
			Provider: cfg.VectorStore.Provider,
			Endpoint: cfg.VectorStore.Endpoint,
		},
		Indexing: indexingOutput{
			SchemaVersion:    cfg.Indexing.SchemaVersion,
			CustomExtensions: cfg.Indexing.CustomExtensions,
			IgnorePatterns:   cfg.Indexing.IgnorePatterns,
			MaxFileSizeBytes: cfg.Indexing.MaxFileSizeBytes,
		},
		Reranker: rerankerOutput{Configured: cfg.Reranker.VoyageAPIKey != ""},
		Watcher:  cfg.Watcher,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot encode configuration: %v\n", err)
		os.Exit(1)
	}
}

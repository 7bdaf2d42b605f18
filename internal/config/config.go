// Package config provides configuration loading and structs for the Kotaeru server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the two persisted index artifacts.
// The vector file and the passage database are always written and read as a
// pair; pointing them at stores from different runs is a corrupt state.
type StorageConfig struct {
	VectorIndexPath string `yaml:"vector_index_path"`
	PassageDBPath   string `yaml:"passage_db_path"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // huggingface or openai
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"` // override for the inference endpoint (tests, proxies)
}

// RAGConfig holds chunking and retrieval settings.
type RAGConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`
	OverlapParagraphs *int    `yaml:"overlap_paragraphs"`
	TopK              int     `yaml:"top_k"`
	MinScore          float64 `yaml:"min_score"`
	DefaultProvider   string  `yaml:"default_provider"`
}

// OverlapOrDefault returns the paragraph overlap; defaults to 1 when unset.
// Zero is a valid value meaning no overlap.
func (r *RAGConfig) OverlapOrDefault() int {
	if r.OverlapParagraphs != nil {
		return *r.OverlapParagraphs
	}
	return 1
}

// WatchConfig holds directory watch settings for automatic PDF ingestion.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.PassageDBPath = expandPath(cfg.Storage.PassageDBPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

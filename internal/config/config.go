// Package config provides configuration loading and structs for the docqa server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects and locates the document store.
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	BoltPath     string `yaml:"bolt_path"`
}

// Path returns the file used by the selected driver.
func (s StorageConfig) Path() string {
	if strings.EqualFold(s.Driver, "bolt") {
		return s.BoltPath
	}
	return s.DatabasePath
}

// EmbeddingConfig holds remote embedding settings.
type EmbeddingConfig struct {
	Provider           string        `yaml:"provider"`
	Host               string        `yaml:"host"`
	Model              string        `yaml:"model"`
	FallbackDimensions int           `yaml:"fallback_dimensions"`
	Timeout            time.Duration `yaml:"timeout"`
	CacheSize          int           `yaml:"cache_size"`
	SkipDegraded       bool          `yaml:"skip_degraded"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Host             string        `yaml:"host"`
	Model            string        `yaml:"model"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxDocumentChars int           `yaml:"max_document_chars"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	DefaultK        int   `yaml:"default_k"`
	MaxK            int   `yaml:"max_k"`
	CandidateLimit  int   `yaml:"candidate_limit"`
	KeywordFallback *bool `yaml:"keyword_fallback"`
	RebuildWorkers  int   `yaml:"rebuild_workers"`
}

// KeywordFallbackOrDefault returns whether the keyword fallback is on; defaults to true when unset.
func (r *RetrievalConfig) KeywordFallbackOrDefault() bool {
	if r.KeywordFallback != nil {
		return *r.KeywordFallback
	}
	return true
}

// LifecycleConfig holds guest document expiry settings.
type LifecycleConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EnabledOrDefault returns whether metrics are served; defaults to true when unset.
func (m *MetricsConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Load reads and parses the config file at path, applies defaults and expands paths.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BoltPath = expandPath(cfg.Storage.BoltPath, configDir)

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides model settings from the environment.
func ApplyEnv(cfg *Config) {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Embedding.Host = host
		cfg.Generation.Host = host
	}
	if model := os.Getenv("DOCQA_MODEL"); model != "" {
		cfg.Generation.Model = model
	}
	if model := os.Getenv("DOCQA_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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

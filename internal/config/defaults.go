package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/docqa.db"
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = "./data/docqa.bolt"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "llama2"
	}
	if cfg.Embedding.FallbackDimensions == 0 {
		cfg.Embedding.FallbackDimensions = 4096
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Generation.Host == "" {
		cfg.Generation.Host = "http://localhost:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama2"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 120 * time.Second
	}
	if cfg.Generation.MaxDocumentChars == 0 {
		cfg.Generation.MaxDocumentChars = 2000
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 3
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 50
	}
	if cfg.Retrieval.RebuildWorkers == 0 {
		cfg.Retrieval.RebuildWorkers = 4
	}
	// Keyword fallback defaults to true when unset (nil).
	if cfg.Retrieval.KeywordFallback == nil {
		t := true
		cfg.Retrieval.KeywordFallback = &t
	}
	if cfg.Lifecycle.SessionTTL == 0 {
		cfg.Lifecycle.SessionTTL = 24 * time.Hour
	}
	if cfg.Lifecycle.SweepInterval == 0 {
		cfg.Lifecycle.SweepInterval = 10 * time.Minute
	}
	if cfg.Metrics.Enabled == nil {
		t := true
		cfg.Metrics.Enabled = &t
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

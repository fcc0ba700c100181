package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  timeout: 5s
  skip_degraded: true
lifecycle:
  session_ttl: 2h
retrieval:
  keyword_fallback: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if cfg.Embedding.Timeout != 5*time.Second || !cfg.Embedding.SkipDegraded {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Lifecycle.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.Lifecycle.SessionTTL)
	}
	if cfg.Retrieval.KeywordFallbackOrDefault() {
		t.Error("keyword_fallback: false should be kept")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: bolt
  bolt_path: "./state/docs.bolt"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "state", "docs.bolt")
	if cfg.Storage.BoltPath != want {
		t.Errorf("BoltPath = %q, want %q", cfg.Storage.BoltPath, want)
	}
	if cfg.Storage.Path() != want {
		t.Errorf("Path() = %q, want %q", cfg.Storage.Path(), want)
	}
	if cfg.Storage.DatabasePath != filepath.Join(filepath.Dir(path), "data", "docqa.db") {
		t.Errorf("default DatabasePath = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Embedding.Model != "llama2" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail on missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.FallbackDimensions != 4096 {
		t.Errorf("FallbackDimensions = %d", cfg.Embedding.FallbackDimensions)
	}
	if cfg.Embedding.Host != "http://localhost:11434" || cfg.Generation.Host != "http://localhost:11434" {
		t.Errorf("hosts = %s, %s", cfg.Embedding.Host, cfg.Generation.Host)
	}
	if cfg.Generation.Timeout != 120*time.Second || cfg.Embedding.Timeout != 60*time.Second {
		t.Errorf("timeouts = %v, %v", cfg.Generation.Timeout, cfg.Embedding.Timeout)
	}
	if cfg.Retrieval.DefaultK != 3 || cfg.Retrieval.MaxK != 50 || cfg.Retrieval.CandidateLimit != 0 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if !cfg.Retrieval.KeywordFallbackOrDefault() || !cfg.Metrics.EnabledOrDefault() {
		t.Error("keyword fallback and metrics should default to enabled")
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path() != cfg.Storage.DatabasePath {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	t.Setenv("DOCQA_MODEL", "mistral")
	t.Setenv("DOCQA_EMBEDDING_MODEL", "nomic-embed-text")
	cfg := Default()
	ApplyEnv(cfg)
	if cfg.Embedding.Host != "http://gpu:11434" || cfg.Generation.Host != "http://gpu:11434" {
		t.Errorf("hosts not overridden: %+v %+v", cfg.Embedding, cfg.Generation)
	}
	if cfg.Generation.Model != "mistral" || cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("models not overridden")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Server.Port = 9999
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Server.Port != 9999 {
		t.Errorf("Port = %d", got.Server.Port)
	}
}

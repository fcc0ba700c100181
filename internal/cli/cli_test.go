package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/server"
)

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	content := `
debug: true
server:
  port: 9090
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || cfg.Server.Port != 9090 {
		t.Errorf("cwd config.yaml not used: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
}

func TestLoadConfig_defaultPathMissingUsesDefaults(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Retrieval.DefaultK != 3 {
		t.Errorf("expected defaults, got port=%d default_k=%d", cfg.Server.Port, cfg.Retrieval.DefaultK)
	}
}

func TestLoadConfig_explicitPathMustExist(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"a.txt", "notes/b.md", "notes/deep/c.pdf", "img.png", ".git/config.txt"} {
		path := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"defaults", nil, []string{"a.txt", "notes/b.md", "notes/deep/c.pdf"}},
		{"markdown only", []string{"**/*.md"}, []string{"notes/b.md"}},
		{"top level only", []string{"*.txt"}, []string{"a.txt"}},
		{"several", []string{"notes/**", "*.png"}, []string{"img.png", "notes/b.md", "notes/deep/c.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := CollectFiles(root, tt.patterns)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(files))
			for i, f := range files {
				rel, _ := filepath.Rel(root, f)
				got[i] = filepath.ToSlash(rel)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CollectFiles() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := CollectFiles(root, []string{"[invalid"}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWriteAnswer(t *testing.T) {
	resp := &models.QueryResponse{
		Query:     "what are cats",
		Answer:    "Cats are mammals [1].",
		QueryTime: 12,
		Sources: []models.Source{
			{ID: 1, DocumentID: 7, Title: "Cats", Content: "cats are mammals", Score: 0.25},
		},
	}

	var text bytes.Buffer
	if err := WriteAnswer(&text, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Cats are mammals [1].", "[1] Cats (document 7, score 0.2500)", "cats are mammals"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("text output missing %q:\n%s", want, text.String())
		}
	}

	var js bytes.Buffer
	if err := WriteAnswer(&js, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.QueryResponse
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, js.String())
	}
	if decoded.Answer != resp.Answer || len(decoded.Sources) != 1 || decoded.Sources[0].DocumentID != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteStatus_Text(t *testing.T) {
	status := map[string]any{
		"documents":        float64(3),
		"index":            map[string]any{"slots": float64(4), "entries": float64(3), "dimensions": float64(512)},
		"disk_usage_bytes": float64(2048),
		"config":           map[string]any{"storage_driver": "sqlite", "candidate_limit": float64(0)},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Documents: 3", "4 slots, 3 entries, 512 dimensions", "Disk usage: 2.0 KiB", "storage_driver: sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := parseFormat("JSON"); err != nil || f != OutputJSON {
		t.Errorf("parseFormat(JSON) = %q, %v", f, err)
	}
	if _, err := parseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// newTestServer runs the real components with the mock embedder and a fake generation endpoint.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "fake answer"})
	}))
	t.Cleanup(ollama.Close)

	c := config.Default()
	c.Storage.DatabasePath = filepath.Join(t.TempDir(), "docqa.db")
	c.Embedding.Provider = ProviderMock
	c.Embedding.FallbackDimensions = 256
	c.Generation.Host = ollama.URL

	components, err := initializeComponents(c, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(components.Close)

	srv := server.NewServer(server.Deps{
		Engine:      components.Engine,
		Synthesizer: components.Synthesizer,
		Lifecycle:   components.Lifecycle,
		Storage:     components.Storage,
		Extractor:   components.Extractor,
		Metrics:     components.Metrics,
		Config:      c,
		Logger:      zap.NewNop(),
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestIngestAndAsk(t *testing.T) {
	ts := newTestServer(t)
	root := t.TempDir()
	files := map[string]string{
		"cats.txt":   "cats are small furry mammals",
		"stars.md":   "stars are giant balls of plasma",
		"empty.txt":  "   ",
		"ignore.bin": "binary",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := CollectFiles(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	owner := NewClient(ts.URL, Identity{Role: server.RoleUser, UserID: 1}, 10*time.Second)
	summary := ingestFiles(ctx, owner, paths, nil, nil)
	if summary.Uploaded != 2 || summary.Failed != 1 || summary.NotIndexed != 0 {
		t.Fatalf("summary = %+v, want 2 uploaded and 1 failed", summary)
	}

	resp, err := owner.Query(ctx, "furry mammals", 1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "fake answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Content != files["cats.txt"] {
		t.Errorf("sources = %+v, want the cats document", resp.Sources)
	}

	other := NewClient(ts.URL, Identity{Role: server.RoleUser, UserID: 2}, 10*time.Second)
	resp, err = other.Query(ctx, "furry mammals", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("user 2 sees %d sources, want 0", len(resp.Sources))
	}

	status, err := owner.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status["documents"] != float64(2) {
		t.Errorf("status documents = %v, want 2", status["documents"])
	}
}

func TestClient_ReportsServerError(t *testing.T) {
	ts := newTestServer(t)
	anonymous := NewClient(ts.URL, Identity{}, 5*time.Second)
	_, err := anonymous.Query(context.Background(), "anything", 0)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestUploadTracker_ReplacesAndDeletes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	root := t.TempDir()
	path := filepath.Join(root, "policy.txt")
	if err := os.WriteFile(path, []byte("refunds within thirty days"), 0600); err != nil {
		t.Fatal(err)
	}

	client := NewClient(ts.URL, Identity{Role: server.RoleUser, UserID: 1}, 10*time.Second)
	tracker := newUploadTracker(ctx, client, zap.NewNop())
	if s := ingestFiles(ctx, client, []string{path}, nil, tracker); s.Uploaded != 1 {
		t.Fatalf("summary = %+v", s)
	}
	first, err := client.List(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("list = %v, %v", first, err)
	}

	if err := os.WriteFile(path, []byte("refunds within sixty days"), 0600); err != nil {
		t.Fatal(err)
	}
	tracker.Changed(path)
	second, err := client.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].ID == first[0].ID {
		t.Fatalf("after change list = %+v, want one replacement document", second)
	}

	tracker.Removed(path)
	third, err := client.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 0 {
		t.Errorf("after remove list = %+v, want empty", third)
	}
}

func TestPatternMatcher(t *testing.T) {
	match := patternMatcher([]string{"docs/**/*.md"})
	if !match("docs/a/b.md") || match("notes/b.md") || match("docs/a.txt") {
		t.Error("patternMatcher mismatch")
	}
	if !patternMatcher(nil)("deep/file.pdf") {
		t.Error("default patterns should accept pdf files")
	}
}

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/answer"
	"github.com/hyperjump/docqa/internal/cli"
	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/lifecycle"
	"github.com/hyperjump/docqa/internal/metrics"
	"github.com/hyperjump/docqa/internal/retrieval"
	"github.com/hyperjump/docqa/internal/server"
	"github.com/hyperjump/docqa/internal/storage"
)

func startServer(t *testing.T) string {
	t.Helper()
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "answer from context"})
	}))
	t.Cleanup(ollama.Close)

	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "e2e.db")
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New()
	logger := zap.NewNop()
	engine, err := retrieval.New(embedding.NewGateway(embedding.NewMockEmbedder(1024)), retrieval.Options{
		KeywordFallback: true, Metrics: m, Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	gen := answer.NewOllamaGenerator(ollama.URL, "test", 5*time.Second)
	srv := server.NewServer(server.Deps{
		Engine:      engine,
		Synthesizer: answer.NewSynthesizer(gen, 0, m, logger),
		Lifecycle:   lifecycle.NewManager(engine, store, time.Hour, time.Minute, m, logger),
		Storage:     store,
		Metrics:     m,
		Config:      cfg,
		Logger:      logger,
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts.URL
}

func ownerClient(url string, owner int64) *cli.Client {
	return cli.NewClient(url, cli.Identity{Role: server.RoleUser, UserID: owner}, 10*time.Second)
}

func TestE2E_CorpusAcrossOwners(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	ids := make(map[string]int64, len(corpus.Entries))
	ownerOf := make(map[int64]int64, len(corpus.Entries))
	for i, e := range corpus.Entries {
		ext := UploadExtensions[i%len(UploadExtensions)]
		content, err := EncodeFile(ext, e.Content)
		if err != nil {
			t.Fatal(err)
		}
		res, err := ownerClient(url, e.Owner).Upload(ctx, e.Key+ext, content)
		if err != nil {
			t.Fatalf("upload %s%s: %v", e.Key, ext, err)
		}
		if !res.Indexed {
			t.Fatalf("upload %s%s not indexed", e.Key, ext)
		}
		ids[e.Key] = res.ID
		ownerOf[res.ID] = e.Owner
	}

	for _, c := range corpus.Cases {
		c := c
		t.Run(c.Key, func(t *testing.T) {
			resp, err := ownerClient(url, c.Owner).Query(ctx, c.Query, 3)
			if err != nil {
				t.Fatal(err)
			}
			found := false
			for _, src := range resp.Sources {
				if ownerOf[src.DocumentID] != c.Owner {
					t.Errorf("owner %d got document %d of owner %d", c.Owner, src.DocumentID, ownerOf[src.DocumentID])
				}
				if src.DocumentID == ids[c.Key] {
					found = true
				}
			}
			if !found {
				t.Errorf("query %q: document %s not in top 3 %+v", c.Query, c.Key, resp.Sources)
			}

			other := c.Owner%Owners + 1
			resp, err = ownerClient(url, other).Query(ctx, c.Query, 3)
			if err != nil {
				t.Fatal(err)
			}
			for _, src := range resp.Sources {
				if src.DocumentID == ids[c.Key] {
					t.Errorf("owner %d sees document %s of owner %d", other, c.Key, c.Owner)
				}
			}
		})
	}

	admin := cli.NewClient(url, cli.Identity{Role: server.RoleAdmin, UserID: 99}, 10*time.Second)
	all, err := admin.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(corpus.Entries) {
		t.Errorf("admin lists %d documents, want %d", len(all), len(corpus.Entries))
	}
}

func TestE2E_DeleteAndRebuild(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	owner := ownerClient(url, 1)

	var ids []int64
	for _, e := range corpus.Entries[:4] {
		res, err := owner.Upload(ctx, e.Key+".txt", []byte(e.Content))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ID)
	}
	target := corpus.Cases[0]

	if err := ownerClient(url, 2).Delete(ctx, ids[0]); err == nil {
		t.Fatal("owner 2 deleted a document of owner 1")
	}
	if err := owner.Delete(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	resp, err := owner.Query(ctx, target.Query, 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, src := range resp.Sources {
		if src.DocumentID == ids[0] {
			t.Fatalf("deleted document %d still returned", ids[0])
		}
	}

	status, err := owner.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	index := status["index"].(map[string]any)
	if index["slots"] != float64(4) || index["entries"] != float64(3) {
		t.Errorf("index after delete = %v, want 4 slots and 3 entries", index)
	}

	if _, err := owner.Rebuild(ctx); err == nil {
		t.Fatal("non-admin rebuild succeeded")
	}
	admin := cli.NewClient(url, cli.Identity{Role: server.RoleAdmin}, time.Minute)
	res, err := admin.Rebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	index = res["index"].(map[string]any)
	if index["slots"] != float64(3) || index["entries"] != float64(3) {
		t.Errorf("index after rebuild = %v, want 3 slots and 3 entries", index)
	}
}

func TestE2E_GuestSessions(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	anon := cli.NewClient(url, cli.Identity{}, 10*time.Second)

	s1, err := anon.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := anon.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s1 == "" || s1 == s2 {
		t.Fatalf("sessions %q and %q must be distinct and non-empty", s1, s2)
	}

	guest1 := cli.NewClient(url, cli.Identity{Role: server.RoleGuest, SessionID: s1}, 10*time.Second)
	guest2 := cli.NewClient(url, cli.Identity{Role: server.RoleGuest, SessionID: s2}, 10*time.Second)
	if _, err := guest1.Upload(ctx, "notes.txt", []byte("guest notes about the espresso machine")); err != nil {
		t.Fatal(err)
	}

	resp, err := guest1.Query(ctx, "espresso machine", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("session 1 sources = %d, want 1", len(resp.Sources))
	}

	resp, err = guest2.Query(ctx, "espresso machine", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 0 || resp.Answer != answer.NoDocumentsAnswer {
		t.Errorf("session 2 got answer %q with %d sources", resp.Answer, len(resp.Sources))
	}

	admin := cli.NewClient(url, cli.Identity{Role: server.RoleAdmin}, 10*time.Second)
	docs, err := admin.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("admin lists %d guest documents, want 0", len(docs))
	}
}

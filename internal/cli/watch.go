package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/watcher"
)

// uploadTracker keeps the server in step with a watched directory. A changed file is
// uploaded again and its previous document deleted; a removed file has its document deleted.
type uploadTracker struct {
	ctx    context.Context
	client *Client
	logger *zap.Logger

	mu  sync.Mutex
	ids map[string]int64
}

func newUploadTracker(ctx context.Context, client *Client, logger *zap.Logger) *uploadTracker {
	return &uploadTracker{ctx: ctx, client: client, logger: logger, ids: make(map[string]int64)}
}

func (u *uploadTracker) track(path string, id int64) {
	u.mu.Lock()
	u.ids[key(path)] = id
	u.mu.Unlock()
}

func (u *uploadTracker) Changed(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		u.logger.Warn("read changed file", zap.String("path", path), zap.Error(err))
		return
	}
	res, err := u.client.Upload(u.ctx, path, content)
	if err != nil {
		u.logger.Warn("upload changed file", zap.String("path", path), zap.Error(err))
		return
	}
	u.mu.Lock()
	prev, had := u.ids[key(path)]
	u.ids[key(path)] = res.ID
	u.mu.Unlock()
	if had {
		u.forget(path, prev)
	}
	u.logger.Info("uploaded", zap.String("path", path), zap.Int64("doc_id", res.ID), zap.Bool("indexed", res.Indexed))
}

func (u *uploadTracker) Removed(path string) {
	u.mu.Lock()
	id, ok := u.ids[key(path)]
	delete(u.ids, key(path))
	u.mu.Unlock()
	if ok {
		u.forget(path, id)
	}
}

func (u *uploadTracker) forget(path string, id int64) {
	if err := u.client.Delete(u.ctx, id); err != nil {
		u.logger.Warn("delete replaced document", zap.String("path", path), zap.Int64("doc_id", id), zap.Error(err))
	}
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// patternMatcher returns a watcher match function for the ingest include globs.
func patternMatcher(patterns []string) func(rel string) bool {
	if len(patterns) == 0 {
		patterns = DefaultIngestPatterns
	}
	return func(rel string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	}
}

// watchDir uploads changes under root until ctx is cancelled.
func watchDir(ctx context.Context, root string, tracker *uploadTracker) error {
	w, err := watcher.New(root, patternMatcher(ingestInclude), tracker, watcher.WithLogger(tracker.logger))
	if err != nil {
		return err
	}
	tracker.logger.Info("watching for changes", zap.String("root", root))
	return w.Run(ctx)
}

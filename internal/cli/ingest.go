package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/pkg/utils"
)

// DefaultIngestPatterns are the include globs used when none are given.
var DefaultIngestPatterns = []string{
	"**/*.txt", "**/*.md", "**/*.pdf", "**/*.docx", "**/*.xlsx", "**/*.csv", "**/*.json",
}

var (
	ingestInclude []string
	ingestWatch   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Upload every matching file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := CollectFiles(args[0], ingestInclude)
		if err != nil {
			return err
		}
		if len(files) == 0 && !ingestWatch {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching files.")
			return nil
		}
		client := NewClient(serverURL, identity, cfg.Embedding.Timeout+30*time.Second)
		ctx := cmd.Context()
		if ingestWatch {
			var cancel context.CancelFunc
			ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer cancel()
		}
		tracker := newUploadTracker(ctx, client, utils.OrNop(logger))
		summary := ingestFiles(ctx, client, files, newIngestBar(len(files)), tracker)
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d of %d files (%d not indexed, %d failed)\n",
			summary.Uploaded, len(files), summary.NotIndexed, summary.Failed)
		if ingestWatch {
			return watchDir(ctx, args[0], tracker)
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d uploads failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestInclude, "include", "i", nil, "include glob, relative to dir (repeatable)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and upload files as they change")
}

// CollectFiles walks root and returns the regular files whose root-relative slash path
// matches any of patterns, in lexical order.
func CollectFiles(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultIngestPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

type ingestSummary struct {
	Uploaded   int
	NotIndexed int
	Failed     int
}

func newIngestBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Uploading[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// ingestFiles uploads files one at a time, recording each upload in tracker when it is non-nil.
// A nil bar disables progress output.
func ingestFiles(ctx context.Context, client *Client, files []string, bar *progressbar.ProgressBar, tracker *uploadTracker) ingestSummary {
	var s ingestSummary
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		if err := ingestFile(ctx, client, path, &s, tracker); err != nil {
			s.Failed++
			utils.OrNop(logger).Warn("upload failed", zap.String("path", path), zap.Error(err))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return s
}

func ingestFile(ctx context.Context, client *Client, path string, s *ingestSummary, tracker *uploadTracker) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := client.Upload(ctx, path, content)
	if err != nil {
		return err
	}
	s.Uploaded++
	if tracker != nil {
		tracker.track(path, res.ID)
	}
	if !res.Indexed {
		s.NotIndexed++
	}
	return nil
}

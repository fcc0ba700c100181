package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// sourcePreview bounds the content printed per source in text output.
const sourcePreview = 200

// WriteAnswer writes a query response to w in the given format.
func WriteAnswer(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\n%s\n\n", response.Answer)
	if len(response.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "Sources (%d, %dms):\n", len(response.Sources), response.QueryTime)
	for _, src := range response.Sources {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s (document %d, score %.4f)\n", src.ID, src.Title, src.DocumentID, src.Score)
		fmt.Fprintf(w, "%s\n", utils.Truncate(src.Content, sourcePreview))
	}
	fmt.Fprintln(w)
	return nil
}

// WriteStatus writes the server status document to w in the given format.
func WriteStatus(w io.Writer, status map[string]any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Documents: %v\n", status["documents"])
	if idx, ok := status["index"].(map[string]any); ok {
		fmt.Fprintf(w, "Index: %v slots, %v entries, %v dimensions\n", idx["slots"], idx["entries"], idx["dimensions"])
	}
	if disk, ok := status["disk_usage_bytes"].(float64); ok {
		fmt.Fprintf(w, "Disk usage: %s\n", formatBytes(int64(disk)))
	}
	if conf, ok := status["config"].(map[string]any); ok {
		keys := make([]string, 0, len(conf))
		for k := range conf {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Config:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, conf[k])
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

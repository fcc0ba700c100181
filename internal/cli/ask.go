package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	askK      int
	askOutput string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the documents visible to the caller",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(askOutput)
		if err != nil {
			return err
		}
		client := NewClient(serverURL, identity, cfg.Embedding.Timeout+cfg.Generation.Timeout+30*time.Second)
		resp, err := client.Query(cmd.Context(), strings.Join(args, " "), askK)
		if err != nil {
			return err
		}
		return WriteAnswer(cmd.OutOrStdout(), resp, format)
	},
}

func init() {
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "number of sources (0 uses the server default)")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", string(OutputText), "output format: text or json")
}

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

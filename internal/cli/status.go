package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document count, index state and configuration of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(statusOutput)
		if err != nil {
			return err
		}
		status, err := NewClient(serverURL, identity, 30*time.Second).Status(cmd.Context())
		if err != nil {
			return err
		}
		return WriteStatus(cmd.OutOrStdout(), status, format)
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", string(OutputText), "output format: text or json")
}

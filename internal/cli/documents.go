package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const adminTimeout = 10 * time.Minute

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create a guest session and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := NewClient(serverURL, identity, 30*time.Second).CreateSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the documents visible to the caller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := NewClient(serverURL, identity, 30*time.Second).List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, d := range docs {
			fmt.Fprintf(out, "%d\t%s\t%s\n", d.ID, d.CreatedAt.Format(time.RFC3339), d.Title)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document visible to the caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid document id %q", args[0])
		}
		if err := NewClient(serverURL, identity, 30*time.Second).Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %d\n", id)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the server index from the document store (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := NewClient(serverURL, identity, adminTimeout).Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

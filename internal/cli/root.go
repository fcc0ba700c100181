// Package cli implements the docqa command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/docqa/config.yaml"

// version is set at build time with -ldflags "-X github.com/hyperjump/docqa/internal/cli.version=...".
var version = "dev"

var (
	cfgFile   string
	debugMode bool
	serverURL string
	identity  Identity

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document question answering over your own files",
	Long: `docqa stores uploaded documents, indexes them for semantic search and answers
questions from the most relevant ones using a local language model.

Example usage:
  docqa server                         # Run the HTTP API
  docqa ingest ./docs --role user --user 1
  docqa ask "what is the refund policy" --role user --user 1`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		config.ApplyEnv(cfg)
		logger, err = utils.NewLogger(cfg.Debug || debugMode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&debugMode, "debug", false, "enable debug logging")
	pf.StringVar(&serverURL, "server", "http://localhost:8080", "server URL for HTTP commands")
	pf.StringVar(&identity.Role, "role", "user", "caller role: admin, user or guest")
	pf.Int64Var(&identity.UserID, "user", 0, "caller user id (admin and user roles)")
	pf.StringVar(&identity.SessionID, "session", "", "caller session id (guest role)")

	rootCmd.AddCommand(serverCmd, askCmd, ingestCmd, statusCmd, expireCmd, versionCmd,
		sessionCmd, listCmd, deleteCmd, rebuildCmd)
}

// loadConfig loads config from path. When path is the default it first looks for
// config.yaml in the current directory; a missing default file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				return config.Load(local)
			}
		}
		return config.LoadOrDefault(path)
	}
	c, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	return c, err
}

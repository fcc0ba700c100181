package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := components.Lifecycle.RebuildFromStore(ctx); err != nil {
		// Documents that failed to embed stay stored and are retried on the next rebuild.
		logger.Warn("initial rebuild incomplete", zap.Error(err))
	}
	go components.Lifecycle.Run(ctx)

	srv := server.NewServer(server.Deps{
		Engine:      components.Engine,
		Synthesizer: components.Synthesizer,
		Lifecycle:   components.Lifecycle,
		Storage:     components.Storage,
		Extractor:   components.Extractor,
		Metrics:     components.Metrics,
		Config:      cfg,
		Logger:      logger,
	})
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	}

	logger.Info("Shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if _, err := components.Lifecycle.Sweep(stopCtx); err != nil {
		logger.Warn("final sweep failed", zap.Error(err))
	}
	return nil
}

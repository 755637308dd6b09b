package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/api"
	"github.com/mediarelay/mediarelay/internal/dispatcher"
	"github.com/mediarelay/mediarelay/internal/downloader"
	"github.com/mediarelay/mediarelay/internal/processor"
	"github.com/mediarelay/mediarelay/internal/relay"
)

// newServeCmd creates and configures the 'serve' subcommand, the long
// running worker that consumes the request bus.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the relay worker and operational HTTP server",
		Long: `Subscribes to the request bus and processes media URLs until
interrupted. Health and metrics endpoints are served over HTTP on the
configured port.`,

		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	d := buildDispatcher(appInstance)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewServer(
			appInstance.Bus(),
			appInstance.Store(),
			appInstance.IDs(),
			cfg.Bus.Channel,
			logger,
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		errCh <- d.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			stop()
			_ = server.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	logger.Info("serve command finished")
	return nil
}

func buildDispatcher(appInstance App) *dispatcher.Dispatcher {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	marker := downloader.NewMarker(appInstance.Store(), logger)
	retriever := downloader.NewRetriever(
		cfg.Relay.TargetDir,
		marker,
		cfg.Relay.MaxVideoBytes,
		cfg.Relay.MaxImageBytes,
		logger,
	)

	var aweme *processor.AwemeClient
	if cfg.Lookup.Enabled {
		aweme = processor.NewAwemeClient(
			cfg.Lookup.API,
			cfg.HTTPTimeout(),
			relay.NewFixedRetryPolicy(cfg.Lookup.MaxAttempts, cfg.Lookup.Backoff),
			appInstance.Clock(),
			appInstance.IDs(),
			logger,
		)
	}

	registry := processor.NewRegistry(processor.Deps{
		Marker:      marker,
		Streamer:    downloader.NewStreamer(cfg.HTTPTimeout(), logger),
		Retriever:   retriever,
		Aweme:       aweme,
		HTTPTimeout: cfg.HTTPTimeout(),
		Logger:      logger,
	})

	return dispatcher.New(
		appInstance.Bus(),
		relay.NewAllowList(cfg.Relay.SupportedSites),
		registry,
		downloader.NewYtDlp(cfg.Relay.YtDlpBinary, cfg.Relay.TargetDir, marker, logger),
		retriever,
		appInstance.Replier(),
		relay.NewExponentialRetryPolicy(cfg.Reply.MaxAttempts, cfg.Reply.Backoff),
		dispatcher.Config{
			Channel:     cfg.Bus.Channel,
			Concurrency: cfg.Relay.Concurrency,
		},
		logger,
	)
}

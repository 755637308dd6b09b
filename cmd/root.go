// Package cmd defines and implements the CLI commands for the
// mediarelay executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/app"
	"github.com/mediarelay/mediarelay/internal/config"
	"github.com/mediarelay/mediarelay/internal/metrics"
	"github.com/mediarelay/mediarelay/internal/relay"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows
// injecting a mock app during tests.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() relay.MetadataStore
	Bus() relay.Bus
	Replier() relay.Replier
	Clock() relay.Clock
	IDs() relay.IDGenerator
}

// newApp is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediarelay",
		Short: "A media fetching relay between chat front ends and download sites.",
		Long: `mediarelay consumes media URLs published by a chat front end,
downloads the referenced video or image set through site-specific
processors or yt-dlp, and delivers the artifact back over the reply
channel. A metadata store with expiring keys deduplicates downloads
across workers.`,

		// Runs after flags are parsed but before the subcommand's RunE,
		// the place to build and inject the application services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			metrics.Init()
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml search via env)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newPublishCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

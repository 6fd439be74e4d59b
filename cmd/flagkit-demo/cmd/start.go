package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flagkit/core/internal/config"
	"github.com/flagkit/core/internal/logging"
)

type startOptions struct {
	configPath      string
	logLevel        string
	logFile         string
	shutdownTimeout time.Duration
}

// NewStartCmd builds the long-running "start" subcommand: it brings up the
// configured data system, blocks until interrupted, and tears the client
// down in order on exit.
func NewStartCmd() *cobra.Command {
	opts := startOptions{}

	cmd := &cobra.Command{
		Use:   "start -c FILE",
		Short: "Start the data source and block until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Config{Level: opts.logLevel, FilePath: opts.logFile})
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx := cmd.Context()
			c, err := buildClient(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("building client: %w", err)
			}

			c.Start(ctx)
			logger.Infow("flagkit-demo started", "mode", cfg.DataSource.Mode)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			logger.Infow("shutting down")
			c.Close(opts.shutdownTimeout)
			return nil
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file.")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error.")
	f.StringVar(&opts.logFile, "log-file", "", "Optional file path to additionally log to.")
	f.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Bound on data-source shutdown during Close.")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

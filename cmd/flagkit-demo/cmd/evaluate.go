package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flagkit/core/internal/config"
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fval"
	"github.com/flagkit/core/internal/logging"
)

type evaluateOptions struct {
	configPath   string
	flagKey      string
	contextKey   string
	valueType    string
	defaultValue string
	waitTimeout  time.Duration
}

// NewEvaluateCmd builds the one-shot "evaluate" subcommand: bring up the
// configured data system just long enough to evaluate a single flag for a
// single context, print the result, and flush on the way out.
func NewEvaluateCmd() *cobra.Command {
	opts := evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate -c FILE -f FLAG_KEY -u CONTEXT_KEY",
		Short: "Evaluate one flag for one context and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Config{Level: "warn"})
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
			defer c.Close(2 * time.Second)

			if err := awaitInitialized(ctx, c, opts.waitTimeout); err != nil {
				return err
			}

			evalCtx := fctx.New(opts.contextKey)
			defaultValue := fval.Parse(opts.defaultValue)

			var result fval.Value
			switch opts.valueType {
			case "bool":
				result = fval.Bool(c.BoolVariation(opts.flagKey, evalCtx, defaultValue.BoolValue()))
			case "string":
				result = fval.String(c.StringVariation(opts.flagKey, evalCtx, defaultValue.StringValue()))
			case "int":
				result = fval.Int(c.IntVariation(opts.flagKey, evalCtx, defaultValue.IntValue()))
			case "double":
				result = fval.Float64(c.DoubleVariation(opts.flagKey, evalCtx, defaultValue.Float64Value()))
			case "json":
				result = c.JSONVariation(opts.flagKey, evalCtx, defaultValue)
			default:
				return fmt.Errorf("unsupported --type %q (want bool, string, int, double, or json)", opts.valueType)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			c.FlushAsync()
			return nil
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file.")
	f.StringVarP(&opts.flagKey, "flag", "f", "", "Flag key to evaluate.")
	f.StringVarP(&opts.contextKey, "user", "u", "", "Context key to evaluate against.")
	f.StringVarP(&opts.valueType, "type", "t", "bool", "Value type: bool, string, int, double, json.")
	f.StringVarP(&opts.defaultValue, "default", "d", "", "Default value, used if the flag can't be evaluated.")
	f.DurationVar(&opts.waitTimeout, "wait-timeout", 10*time.Second, "How long to wait for the data source to initialize.")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("flag")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// initializedClient is the subset of *client.Client awaitInitialized needs;
// declared as an interface so it can be exercised with a fake in tests.
type initializedClient interface {
	Initialized() bool
}

func awaitInitialized(ctx context.Context, c initializedClient, timeout time.Duration) error {
	if c.Initialized() {
		return nil
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for data source to initialize")
		case <-deadline:
			return fmt.Errorf("timed out after %s waiting for data source to initialize", timeout)
		case <-ticker.C:
			if c.Initialized() {
				return nil
			}
		}
	}
}

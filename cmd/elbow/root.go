package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/elbow/internal/config"
	"github.com/okian/elbow/pkg/logger"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "elbow",
		Short: "Pick hyperparameters at the elbow of their error curve",
		Long: `elbow sweeps an integer hyperparameter, records the validation error of
each fitted model and recommends the value past which more capacity stops
paying off.

Configuration is read from the file given by --config (or ELBOW_CONFIG) and
ELBOW_* environment variables.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
			return err
		}
		level := "warn"
		if opts.debug {
			level = "debug"
		}
		return logger.SetLevelString(level)
	}

	cmd.AddCommand(newSelectCommand())
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newModelsCommand(opts))
	return cmd
}

// load reads configuration from --config, falling back to ELBOW_CONFIG.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(cmd.Context(), o.configPath)
	}
	return config.Load(cmd.Context())
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

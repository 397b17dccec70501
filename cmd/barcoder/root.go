package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"barcoder/internal/config"
	"barcoder/internal/core"
	"barcoder/pkg/domain"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "barcoder",
		Short:         "Prepare and print sample barcode labels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(cmd.PersistentFlags(), opts)
	cmd.AddCommand(
		newServeCmd(opts),
		newCodesCmd(),
		newUsageCmd(opts),
		newPrintersCmd(opts),
		newProjectsCmd(opts),
	)
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default $"+config.EnvConfig+")")
	fs.BoolVar(&opts.debug, "debug", false, "log at debug level")
}

// load reads the configuration and builds the logger it asks for.
func (o *rootOptions) load(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	return cfg, core.NewLogger(stderr, cfg.Log.Format, cfg.Log.Debug), nil
}

// withDirectory opens the configured directory store for the duration of fn.
func (o *rootOptions) withDirectory(cmd *cobra.Command, fn func(context.Context, domain.Directory) error) error {
	cfg, logger, err := o.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	dir, err := core.OpenDirectory(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Warn("closing directory", "error", err)
		}
	}()
	return fn(ctx, dir)
}

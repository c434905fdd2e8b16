package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stmap/internal/bootstrap/config"
	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "stmap",
	Short:        "Source-to-target data mapping store",
	Long:         "Maintain source-to-target column mappings, persisted in a key-value slot and exchanged as spreadsheets.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := resolveLogger(cmd.ErrOrStderr(), config.LogConfig{})
		if err != nil {
			return err
		}
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger, err := logging.New(rootCmd.ErrOrStderr(), "info", "text")
	if err != nil {
		return errs.Wrap(err, "create bootstrap logger")
	}
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "stmap"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// resolveLogger builds the command logger. The --log-level and --log-format flags win
// over the configured values.
func resolveLogger(w io.Writer, fallback config.LogConfig) (*slog.Logger, error) {
	level := strings.TrimSpace(logLevel)
	if level == "" {
		level = fallback.Level
	}
	format := strings.TrimSpace(logFormat)
	if format == "" {
		format = fallback.Format
	}

	logger, err := logging.New(w, level, format)
	if err != nil {
		return nil, errs.Wrap(err, "configure logger")
	}
	return logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: ./configs/config.yaml, ./config.yaml or $XDG_CONFIG_HOME/stmap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format override (text|json)")
}

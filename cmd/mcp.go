package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
	"stmap/internal/mcpserver"
	"stmap/internal/usecase/mapping"
)

// version is overridden at build time with -ldflags "-X stmap/cmd.version=...".
var version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve mapping tools over the Model Context Protocol (stdio)",
	Long:  "Serve mapping tools over MCP on stdin/stdout. Logs go to stderr so stdout stays protocol-only.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		logging.Info(ctx, "mcp stdio server started", slog.String("version", version))
		if err := mcpserver.Run(ctx, mcpserver.New(ctx, svc, version)); err != nil {
			logging.Error(ctx, "mcp server failed", slog.Any("err", errs.Loggable(err)))
			return err
		}
		logging.Info(ctx, "mcp stdio server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

package cmd

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
	"stmap/internal/usecase/mapping"
	"stmap/internal/usecase/treeconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Browse mappings grouped by target table",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		program := tea.NewProgram(treeconsole.NewTreeModel(ctx, svc), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run tree console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleTreeCmd)
}

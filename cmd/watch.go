package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/infrastructure/watch"
	"stmap/internal/usecase/mapping"
)

var mappingWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-import a spreadsheet every time it changes on disk",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		inPath, _ := cmd.Flags().GetString("file")
		formatRaw, _ := cmd.Flags().GetString("format")
		modeRaw, _ := cmd.Flags().GetString("mode")
		initial, _ := cmd.Flags().GetBool("initial")

		inPath = strings.TrimSpace(inPath)
		if inPath == "" || inPath == stdioPath {
			return errs.Wrap(errRequiredFile, "watch")
		}
		mode, err := domainmapping.ParseImportMode(modeRaw)
		if err != nil {
			return err
		}

		reimport := func(runCtx context.Context, path string) error {
			result, err := importFile(runCtx, svc, nil, path, formatRaw, mode)
			if err != nil {
				return err
			}
			logging.Info(
				runCtx,
				"watched file imported",
				slog.String("mode", string(mode)),
				slog.Int("imported", result.ImportedCount),
				slog.Int("skipped", result.SkippedCount),
			)
			return nil
		}

		watcher, err := watch.NewFileWatcher(inPath, app.Config.Watch.Debounce, reimport)
		if err != nil {
			return err
		}

		if initial {
			if err := reimport(ctx, watcher.Path()); err != nil {
				logging.Warn(ctx, "initial import failed", slog.Any("err", errs.Loggable(err)))
			}
		}

		return watcher.Run(ctx)
	}),
}

func init() {
	mappingCmd.AddCommand(mappingWatchCmd)

	mappingWatchCmd.Flags().String("file", "", "Spreadsheet to watch")
	mappingWatchCmd.Flags().String("format", "", "Input format (xlsx|csv|json|yaml); inferred from --file when empty")
	mappingWatchCmd.Flags().String("mode", string(domainmapping.ImportReplace), "Import mode applied on each change (replace|append)")
	mappingWatchCmd.Flags().Bool("initial", true, "Import once before watching")
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stmap/internal/bootstrap"
	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/infrastructure/sheet"
	"stmap/internal/usecase/mapping"
)

const stdioPath = "-"

var errRequiredFile = errors.New("--file is required")

var mappingExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export mappings to xlsx, csv, json or yaml",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		outPath, _ := cmd.Flags().GetString("out")
		formatRaw, _ := cmd.Flags().GetString("format")

		outPath, format, err := resolveExportTarget(outPath, formatRaw, time.Now())
		if err != nil {
			return err
		}

		export, err := svc.Export(ctx)
		if err != nil {
			logging.Error(ctx, "export mappings failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "export mappings")
		}

		var buf bytes.Buffer
		if err := sheet.Encode(&buf, format, export); err != nil {
			return errs.Wrap(err, "encode export")
		}
		if err := writeOutput(cmd, outPath, buf.Bytes()); err != nil {
			return err
		}

		logging.Info(ctx, "mappings exported", slog.String("path", outPath), slog.String("format", string(format)), slog.Int("rows", len(export.Rows)))
		if outPath != stdioPath {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "exported %d mappings to %s\n", len(export.Rows), outPath); err != nil {
				return errs.Wrap(err, "write export output")
			}
		}
		return nil
	}),
}

var mappingImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import mappings from xlsx, csv, json or yaml",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		inPath, _ := cmd.Flags().GetString("file")
		formatRaw, _ := cmd.Flags().GetString("format")
		modeRaw, _ := cmd.Flags().GetString("mode")

		inPath = strings.TrimSpace(inPath)
		if inPath == "" {
			return errRequiredFile
		}
		if inPath == stdioPath && strings.TrimSpace(formatRaw) == "" {
			return errors.New("--format is required when reading from stdin")
		}
		mode, err := domainmapping.ParseImportMode(modeRaw)
		if err != nil {
			return err
		}

		result, err := importFile(ctx, svc, cmd.InOrStdin(), inPath, formatRaw, mode)
		if err != nil {
			logging.Error(ctx, "import mappings failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import mappings")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d mappings (%s), skipped %d incomplete rows\n", result.ImportedCount, mode, result.SkippedCount); err != nil {
			return errs.Wrap(err, "write import output")
		}
		return nil
	}),
}

var mappingReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the lineage report workbook",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *mapping.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		outPath, _ := cmd.Flags().GetString("out")
		outPath = strings.TrimSpace(outPath)
		if outPath == "" {
			outPath = "lineage_report.xlsx"
		}

		report, err := svc.LineageReport(ctx)
		if err != nil {
			return errs.Wrap(err, "build lineage report")
		}

		var buf bytes.Buffer
		if err := sheet.EncodeReport(&buf, report); err != nil {
			return errs.Wrap(err, "encode lineage report")
		}
		if err := writeOutput(cmd, outPath, buf.Bytes()); err != nil {
			return err
		}

		logging.Info(ctx, "lineage report written", slog.String("path", outPath), slog.Int("rows", len(report.Lineage)))
		if outPath != stdioPath {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "lineage report written to %s\n", outPath); err != nil {
				return errs.Wrap(err, "write report output")
			}
		}
		return nil
	}),
}

func init() {
	mappingCmd.AddCommand(mappingExportCmd, mappingImportCmd, mappingReportCmd)

	mappingExportCmd.Flags().String("out", "", "Output path, - for stdout (default mappings_export_<timestamp>.xlsx)")
	mappingExportCmd.Flags().String("format", "", "Output format (xlsx|csv|json|yaml); inferred from --out when empty")

	mappingImportCmd.Flags().String("file", "", "Input path, - for stdin")
	mappingImportCmd.Flags().String("format", "", "Input format (xlsx|csv|json|yaml); inferred from --file when empty")
	mappingImportCmd.Flags().String("mode", string(domainmapping.ImportAppend), "What happens to existing mappings (replace|append)")

	mappingReportCmd.Flags().String("out", "", "Output path, - for stdout (default lineage_report.xlsx)")
}

// resolveExportTarget fills in the default file name and picks the format. Stdout
// without an explicit format falls back to csv.
func resolveExportTarget(outPath string, formatRaw string, now time.Time) (string, sheet.Format, error) {
	outPath = strings.TrimSpace(outPath)
	formatRaw = strings.TrimSpace(formatRaw)

	if outPath == "" {
		ext := string(sheet.FormatXLSX)
		if formatRaw != "" {
			format, err := sheet.ParseFormat(formatRaw)
			if err != nil {
				return "", "", err
			}
			ext = string(format)
		}
		outPath = fmt.Sprintf("mappings_export_%s.%s", now.Format("20060102_150405"), ext)
	}

	if outPath == stdioPath {
		if formatRaw == "" {
			return outPath, sheet.FormatCSV, nil
		}
		format, err := sheet.ParseFormat(formatRaw)
		return outPath, format, err
	}

	format, err := sheet.ResolveFormat(formatRaw, outPath)
	if err != nil {
		return "", "", err
	}
	return outPath, format, nil
}

func writeOutput(cmd *cobra.Command, outPath string, payload []byte) error {
	if outPath == stdioPath {
		if _, err := cmd.OutOrStdout().Write(payload); err != nil {
			return errs.Wrap(err, "write stdout")
		}
		return nil
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, "create output directory %q", dir)
		}
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return errs.Wrapf(err, "write %q", outPath)
	}
	return nil
}

// importFile decodes one file (or stdin for "-") and hands the table to the service.
func importFile(ctx context.Context, svc *mapping.Service, stdin io.Reader, inPath string, formatRaw string, mode domainmapping.ImportMode) (mapping.ImportResult, error) {
	var (
		format sheet.Format
		err    error
	)
	if inPath == stdioPath {
		format, err = sheet.ParseFormat(formatRaw)
	} else {
		format, err = sheet.ResolveFormat(formatRaw, inPath)
	}
	if err != nil {
		return mapping.ImportResult{}, err
	}

	reader := stdin
	if inPath != stdioPath {
		file, err := os.Open(inPath)
		if err != nil {
			return mapping.ImportResult{}, errs.Wrapf(err, "open %q", inPath)
		}
		defer func() { _ = file.Close() }()
		reader = file
	}

	table, err := sheet.Decode(reader, format, inPath)
	if err != nil {
		return mapping.ImportResult{}, err
	}
	return svc.ImportTable(ctx, table, mode)
}

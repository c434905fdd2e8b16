package mapping

import (
	"context"
	"log/slog"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
)

type ImportResult struct {
	ImportedCount int `json:"importedCount"`
	SkippedCount  int `json:"skippedCount"`
}

// ExportTable projects every mapping into a flat spreadsheet row, in insertion order.
func (s *Service) ExportTable(ctx context.Context) ([]domainmapping.Row, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return domainmapping.BuildExport(s.items, s.timeFormat).Rows, nil
}

// Export returns the rows together with the summary and per-target counts used by
// the workbook export.
func (s *Service) Export(ctx context.Context) (domainmapping.Export, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Export{}, err
	}
	defer release()

	return domainmapping.BuildExport(s.items, s.timeFormat), nil
}

// ImportTable parses table rows into new mappings. Rows missing a required field are
// dropped and only counted. ImportReplace discards the current list, ImportAppend keeps it.
func (s *Service) ImportTable(ctx context.Context, table domainmapping.Table, mode domainmapping.ImportMode) (ImportResult, error) {
	mode, err := domainmapping.ParseImportMode(string(mode))
	if err != nil {
		return ImportResult{}, err
	}

	release, err := s.begin(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	parsed, skipped, err := domainmapping.ParseTable(table)
	if err != nil {
		return ImportResult{}, err
	}

	createdAt := s.timestamp()
	imported := make([]domainmapping.Mapping, 0, len(parsed))
	for _, fields := range parsed {
		imported = append(imported, newMapping(s.newID(), fields, createdAt))
	}

	var next []domainmapping.Mapping
	err = s.mutateLocked(ctx, func(current []domainmapping.Mapping) ([]domainmapping.Mapping, error) {
		if mode == domainmapping.ImportReplace {
			next = imported
			return next, nil
		}
		next = make([]domainmapping.Mapping, 0, len(current)+len(imported))
		next = append(next, current...)
		next = append(next, imported...)
		return next, nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	logging.Info(
		logging.WithComponent(ctx, "usecase.mapping"),
		"mappings imported",
		slog.String("mode", string(mode)),
		slog.Int("imported", len(imported)),
		slog.Int("skipped", skipped),
		slog.Int("total", len(next)),
	)
	return ImportResult{ImportedCount: len(imported), SkippedCount: skipped}, nil
}

// LineageReport builds the complete lineage, source × target matrix, and transformation catalog.
func (s *Service) LineageReport(ctx context.Context) (domainmapping.Report, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Report{}, err
	}
	defer release()

	return domainmapping.BuildReport(s.items, s.timeFormat), nil
}

package sheet

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
)

const (
	SheetMappings     = "Mappings"
	SheetSummary      = "Summary"
	SheetTargetTables = "Target Tables"

	SheetLineage         = "Complete Lineage"
	SheetMatrix          = "Source-Target Matrix"
	SheetTransformations = "Transformations"
)

// Encode writes the export in the given format. Only xlsx carries the summary sheets;
// the other formats hold the rows alone.
func Encode(w io.Writer, format Format, export domainmapping.Export) error {
	switch format {
	case FormatXLSX:
		return encodeXLSX(w, export)
	case FormatCSV:
		return encodeCSV(w, export.Rows)
	case FormatJSON:
		return encodeJSON(w, export.Rows)
	case FormatYAML:
		return encodeYAML(w, export.Rows)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func encodeCSV(w io.Writer, rows []domainmapping.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(domainmapping.Headers); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	for _, row := range rows {
		if err := writer.Write(row.Values()); err != nil {
			return errs.Wrap(err, "write csv row")
		}
	}
	writer.Flush()
	return errs.Wrap(writer.Error(), "flush csv")
}

func encodeJSON(w io.Writer, rows []domainmapping.Row) error {
	if rows == nil {
		rows = []domainmapping.Row{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return errs.Wrap(encoder.Encode(rows), "encode json rows")
}

func encodeYAML(w io.Writer, rows []domainmapping.Row) error {
	if rows == nil {
		rows = []domainmapping.Row{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(rows); err != nil {
		return errs.Wrap(err, "encode yaml rows")
	}
	return errs.Wrap(encoder.Close(), "close yaml encoder")
}

func encodeXLSX(w io.Writer, export domainmapping.Export) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName("Sheet1", SheetMappings); err != nil {
		return errs.Wrap(err, "rename mappings sheet")
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errs.Wrap(err, "create header style")
	}

	rows := make([][]any, 0, len(export.Rows))
	for _, row := range export.Rows {
		rows = append(rows, stringsToCells(row.Values()))
	}
	if err := writeSheet(book, SheetMappings, stringsToCells(domainmapping.Headers), rows, bold); err != nil {
		return err
	}

	stats := export.Statistics
	if err := writeSheet(book, SheetSummary, []any{"Metric", "Value"}, [][]any{
		{"Total Mappings", stats.MappingCount},
		{"Target Tables", stats.TargetCount},
		{"Source Tables", stats.SourceCount},
		{"Mappings with Transformations", stats.TransformationCount},
	}, bold); err != nil {
		return err
	}

	targetRows := make([][]any, 0, len(export.TargetCounts))
	for _, target := range export.TargetCounts {
		targetRows = append(targetRows, []any{target.TargetTable, target.Count})
	}
	if err := writeSheet(book, SheetTargetTables, []any{"Target Table", "Number of Mappings"}, targetRows, bold); err != nil {
		return err
	}

	book.SetActiveSheet(0)
	return errs.Wrap(book.Write(w), "write xlsx workbook")
}

// EncodeReport writes the lineage report workbook.
func EncodeReport(w io.Writer, report domainmapping.Report) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName("Sheet1", SheetLineage); err != nil {
		return errs.Wrap(err, "rename lineage sheet")
	}
	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errs.Wrap(err, "create header style")
	}

	lineage := make([][]any, 0, len(report.Lineage))
	for _, row := range report.Lineage {
		lineage = append(lineage, stringsToCells(row.Values()))
	}
	if err := writeSheet(book, SheetLineage, stringsToCells(domainmapping.Headers), lineage, bold); err != nil {
		return err
	}

	matrixHeader := append([]any{"Source Table"}, stringsToCells(report.Matrix.TargetTables)...)
	matrixRows := make([][]any, 0, len(report.Matrix.SourceTables))
	for i, source := range report.Matrix.SourceTables {
		row := []any{source}
		for _, count := range report.Matrix.Counts[i] {
			row = append(row, count)
		}
		matrixRows = append(matrixRows, row)
	}
	if err := writeSheet(book, SheetMatrix, matrixHeader, matrixRows, bold); err != nil {
		return err
	}

	catalog := make([][]any, 0, len(report.Transformations))
	for _, entry := range report.Transformations {
		catalog = append(catalog, []any{entry.TargetTable, entry.TargetField, entry.Transformation})
	}
	if err := writeSheet(book, SheetTransformations, []any{"Target Table", "Target Field", "Transformation"}, catalog, bold); err != nil {
		return err
	}

	book.SetActiveSheet(0)
	return errs.Wrap(book.Write(w), "write report workbook")
}

func writeSheet(book *excelize.File, name string, header []any, rows [][]any, headerStyle int) error {
	if idx, err := book.GetSheetIndex(name); err != nil {
		return errs.Wrapf(err, "look up sheet %q", name)
	} else if idx < 0 {
		if _, err := book.NewSheet(name); err != nil {
			return errs.Wrapf(err, "create sheet %q", name)
		}
	}

	if err := book.SetSheetRow(name, "A1", &header); err != nil {
		return errs.Wrapf(err, "write %q header", name)
	}
	if err := book.SetRowStyle(name, 1, 1, headerStyle); err != nil {
		return errs.Wrapf(err, "style %q header", name)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Wrap(err, "resolve cell name")
		}
		if err := book.SetSheetRow(name, cell, &rows[i]); err != nil {
			return errs.Wrapf(err, "write %q row %d", name, i+2)
		}
	}
	return nil
}

func stringsToCells(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

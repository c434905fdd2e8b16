package sheet

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	domainmapping "stmap/internal/domain/mapping"
)

// Decode reads a table in the given format. Content that cannot be read, or that is
// not shaped like a table, yields a *domainmapping.ParseError. Header checks and row
// validation are left to the caller.
func Decode(r io.Reader, format Format, source string) (domainmapping.Table, error) {
	var (
		table domainmapping.Table
		err   error
	)
	switch format {
	case FormatXLSX:
		table, err = decodeXLSX(r)
	case FormatCSV:
		table, err = decodeCSV(r)
	case FormatJSON:
		table, err = decodeDocuments(r, unmarshalJSON)
	case FormatYAML:
		table, err = decodeDocuments(r, yaml.Unmarshal)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		var parseErr *domainmapping.ParseError
		if errors.As(err, &parseErr) {
			return domainmapping.Table{}, err
		}
		return domainmapping.Table{}, &domainmapping.ParseError{Source: source, Err: err}
	}
	return table, nil
}

func decodeXLSX(r io.Reader) (domainmapping.Table, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return domainmapping.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return domainmapping.Table{}, errors.New("workbook has no sheets")
	}
	name := sheets[0]
	for _, candidate := range sheets {
		if candidate == SheetMappings {
			name = candidate
			break
		}
	}

	grid, err := book.GetRows(name)
	if err != nil {
		return domainmapping.Table{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return tableFromGrid(grid)
}

func decodeCSV(r io.Reader) (domainmapping.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	grid, err := reader.ReadAll()
	if err != nil {
		return domainmapping.Table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return tableFromGrid(grid)
}

// tableFromGrid treats the first row as the header row. Blank rows are dropped.
func tableFromGrid(grid [][]string) (domainmapping.Table, error) {
	if len(grid) == 0 {
		return domainmapping.Table{}, errors.New("no header row")
	}

	headers := make([]string, len(grid[0]))
	for i, header := range grid[0] {
		headers[i] = strings.TrimSpace(header)
	}

	table := domainmapping.Table{Headers: headers}
	for _, cells := range grid[1:] {
		if isBlank(cells) {
			continue
		}
		raw := make(domainmapping.RawRow, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(cells) {
				raw[header] = cells[i]
			}
		}
		table.Rows = append(table.Rows, raw)
	}
	return table, nil
}

var errEmptyDocument = errors.New("empty document: expected a list of row objects")

// unmarshalJSON keeps numbers as json.Number so integer cells keep every digit.
func unmarshalJSON(raw []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the row list")
	}
	return nil
}

func decodeDocuments(r io.Reader, unmarshal func([]byte, any) error) (domainmapping.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return domainmapping.Table{}, fmt.Errorf("read document: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return domainmapping.Table{}, errEmptyDocument
	}

	var records []map[string]any
	if err := unmarshal(raw, &records); err != nil {
		return domainmapping.Table{}, fmt.Errorf("expected a list of row objects: %w", err)
	}
	// null, ~ or a comment-only YAML file; an explicit [] stays a valid zero-row table.
	if records == nil {
		return domainmapping.Table{}, errEmptyDocument
	}

	table := domainmapping.Table{}
	seen := make(map[string]struct{})
	for _, record := range records {
		row := make(domainmapping.RawRow, len(record))
		for key, value := range record {
			row[key] = value
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				table.Headers = append(table.Headers, key)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

package mapping

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	HeaderTargetTable    = "Target Table"
	HeaderTargetField    = "Target Field"
	HeaderSourceTable    = "Source Table"
	HeaderSourceField    = "Source Field"
	HeaderTransformation = "Transformation"
	HeaderNotes          = "Notes"
	HeaderCreatedAt      = "Created At"
	HeaderUpdatedAt      = "Updated At"
)

// Headers is the exported column order.
var Headers = []string{
	HeaderTargetTable,
	HeaderTargetField,
	HeaderSourceTable,
	HeaderSourceField,
	HeaderTransformation,
	HeaderNotes,
	HeaderCreatedAt,
	HeaderUpdatedAt,
}

var requiredHeaders = Headers[:4]

// Row is the flat spreadsheet projection of a Mapping.
type Row struct {
	TargetTable    string `json:"Target Table" yaml:"Target Table"`
	TargetField    string `json:"Target Field" yaml:"Target Field"`
	SourceTable    string `json:"Source Table" yaml:"Source Table"`
	SourceField    string `json:"Source Field" yaml:"Source Field"`
	Transformation string `json:"Transformation" yaml:"Transformation"`
	Notes          string `json:"Notes" yaml:"Notes"`
	CreatedAt      string `json:"Created At" yaml:"Created At"`
	UpdatedAt      string `json:"Updated At" yaml:"Updated At"`
}

// Values returns the cells in Headers order.
func (r Row) Values() []string {
	return []string{
		r.TargetTable,
		r.TargetField,
		r.SourceTable,
		r.SourceField,
		r.Transformation,
		r.Notes,
		r.CreatedAt,
		r.UpdatedAt,
	}
}

// RawRow is one parsed spreadsheet record keyed by header text. Values may be any scalar.
type RawRow map[string]any

// Table is parsed spreadsheet content before validation.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// TableFromRows converts exported rows back into a Table, as if read from a file.
func TableFromRows(rows []Row) Table {
	out := Table{
		Headers: append([]string(nil), Headers...),
		Rows:    make([]RawRow, 0, len(rows)),
	}
	for _, row := range rows {
		raw := make(RawRow, len(Headers))
		for i, value := range row.Values() {
			raw[Headers[i]] = value
		}
		out.Rows = append(out.Rows, raw)
	}
	return out
}

// TimeFormat renders timestamps for export.
type TimeFormat struct {
	Layout   string
	Location *time.Location
}

const DefaultTimeLayout = "2006-01-02 15:04:05"

func (tf TimeFormat) Format(t time.Time) string {
	layout := tf.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	loc := tf.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(layout)
}

func (m Mapping) ToRow(tf TimeFormat) Row {
	updated := ""
	if m.UpdatedAt != nil {
		updated = tf.Format(*m.UpdatedAt)
	}
	return Row{
		TargetTable:    m.TargetTable,
		TargetField:    m.TargetField,
		SourceTable:    m.SourceTable,
		SourceField:    m.SourceField,
		Transformation: m.Transformation,
		Notes:          m.Notes,
		CreatedAt:      tf.Format(m.CreatedAt),
		UpdatedAt:      updated,
	}
}

// CheckHeaders fails with a ParseError when any of the four required columns is absent.
func CheckHeaders(headers []string) error {
	present := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		if canonical, ok := canonicalHeader(header); ok {
			present[canonical] = struct{}{}
		}
	}

	var missing []string
	for _, required := range requiredHeaders {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &ParseError{Err: fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))}
	}
	return nil
}

// ParseTable coerces and normalizes every row, dropping rows with an empty required field.
// skipped counts the dropped rows.
func ParseTable(table Table) (parsed []Fields, skipped int, err error) {
	if len(table.Rows) == 0 && len(table.Headers) == 0 {
		return nil, 0, nil
	}
	if err := CheckHeaders(table.Headers); err != nil {
		return nil, 0, err
	}

	parsed = make([]Fields, 0, len(table.Rows))
	for _, raw := range table.Rows {
		fields := raw.Fields().Normalize()
		if fields.Validate() != nil {
			skipped++
			continue
		}
		parsed = append(parsed, fields)
	}
	return parsed, skipped, nil
}

// Fields extracts the six textual fields. Unknown columns are ignored; absent ones are empty.
// When several keys name the same column in different case, the exact header spelling
// wins, otherwise the first key in sorted order.
func (r RawRow) Fields() Fields {
	keys := make([]string, 0, len(r))
	for header := range r {
		keys = append(keys, header)
	}
	sort.Strings(keys)

	cells := make(map[string]string, len(r))
	exact := make(map[string]bool, len(r))
	for _, header := range keys {
		canonical, ok := canonicalHeader(header)
		if !ok {
			continue
		}
		isExact := strings.TrimSpace(header) == canonical
		if _, seen := cells[canonical]; seen && (exact[canonical] || !isExact) {
			continue
		}
		cells[canonical] = cellString(r[header])
		exact[canonical] = isExact
	}
	return Fields{
		TargetTable:    cells[HeaderTargetTable],
		TargetField:    cells[HeaderTargetField],
		SourceTable:    cells[HeaderSourceTable],
		SourceField:    cells[HeaderSourceField],
		Transformation: cells[HeaderTransformation],
		Notes:          cells[HeaderNotes],
	}
}

func canonicalHeader(header string) (string, bool) {
	trimmed := strings.TrimSpace(header)
	for _, known := range Headers {
		if strings.EqualFold(trimmed, known) {
			return known, true
		}
	}
	return "", false
}

func cellString(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(value))
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writeMappings(w io.Writer, output string, items []domainmapping.Mapping, tf domainmapping.TimeFormat) error {
	if items == nil {
		items = []domainmapping.Mapping{}
	}

	switch normalizeOutput(output) {
	case outputJSON:
		return writeJSON(w, items)
	case outputYAML:
		return writeYAML(w, items)
	case outputTable:
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			row := item.ToRow(tf)
			rows = append(rows, append([]string{item.ID}, row.Values()...))
		}
		return writeTable(w, append([]string{"ID"}, domainmapping.Headers...), rows)
	default:
		return unsupportedOutput(output)
	}
}

func writeTree(w io.Writer, output string, groups []domainmapping.Group) error {
	if groups == nil {
		groups = []domainmapping.Group{}
	}

	switch normalizeOutput(output) {
	case outputJSON:
		return writeJSON(w, groups)
	case outputYAML:
		return writeYAML(w, groups)
	case outputTable:
		var b strings.Builder
		for _, group := range groups {
			fmt.Fprintf(&b, "%s (%d)\n", group.TargetTable, len(group.Mappings))
			for i, item := range group.Mappings {
				branch := "├──"
				if i == len(group.Mappings)-1 {
					branch = "└──"
				}
				fmt.Fprintf(&b, "%s %s ← %s.%s", branch, item.TargetField, item.SourceTable, item.SourceField)
				if item.Transformation != "" {
					fmt.Fprintf(&b, "  [%s]", item.Transformation)
				}
				fmt.Fprintf(&b, "  (%s)\n", item.ID)
			}
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return errs.Wrap(err, "write tree output")
		}
		return nil
	default:
		return unsupportedOutput(output)
	}
}

func writeStatistics(w io.Writer, output string, stats domainmapping.Statistics) error {
	switch normalizeOutput(output) {
	case outputJSON:
		return writeJSON(w, stats)
	case outputYAML:
		return writeYAML(w, stats)
	case outputTable:
		return writeTable(w, []string{"Metric", "Value"}, [][]string{
			{"Target Tables", strconv.Itoa(stats.TargetCount)},
			{"Mappings", strconv.Itoa(stats.MappingCount)},
			{"Source Tables", strconv.Itoa(stats.SourceCount)},
			{"With Transformations", strconv.Itoa(stats.TransformationCount)},
		})
	default:
		return unsupportedOutput(output)
	}
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	if _, err := fmt.Fprintln(w, rendered.Render()); err != nil {
		return errs.Wrap(err, "write table output")
	}
	return nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errs.Wrap(encoder.Encode(value), "write json output")
}

func writeYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return errs.Wrap(err, "write yaml output")
	}
	return errs.Wrap(encoder.Close(), "close yaml output")
}

func normalizeOutput(output string) string {
	normalized := strings.ToLower(strings.TrimSpace(output))
	if normalized == "" {
		return outputTable
	}
	return normalized
}

func unsupportedOutput(output string) error {
	return fmt.Errorf("unsupported output %q (expected: table, json or yaml)", output)
}

// lineageLabel renders "SOURCE.FIELD → TARGET.FIELD".
func lineageLabel(item domainmapping.Mapping) string {
	return fmt.Sprintf("%s.%s → %s.%s", item.SourceTable, item.SourceField, item.TargetTable, item.TargetField)
}

package mapping

import (
	"sort"
	"strings"
)

// Group is the set of mappings feeding one target table.
type Group struct {
	TargetTable string    `json:"targetTable" yaml:"targetTable"`
	Mappings    []Mapping `json:"mappings" yaml:"mappings"`
}

type Statistics struct {
	TargetCount         int `json:"targetCount" yaml:"targetCount"`
	MappingCount        int `json:"mappingCount" yaml:"mappingCount"`
	SourceCount         int `json:"sourceCount" yaml:"sourceCount"`
	TransformationCount int `json:"transformationCount" yaml:"transformationCount"`
}

// GroupByTarget partitions items by TargetTable. Groups are sorted by name and keep
// the input order inside each group.
func GroupByTarget(items []Mapping) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, item := range items {
		idx, ok := index[item.TargetTable]
		if !ok {
			idx = len(groups)
			index[item.TargetTable] = idx
			groups = append(groups, Group{TargetTable: item.TargetTable})
		}
		groups[idx].Mappings = append(groups[idx].Mappings, item)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TargetTable < groups[j].TargetTable
	})
	return groups
}

func Summarize(items []Mapping) Statistics {
	targets := make(map[string]struct{})
	sources := make(map[string]struct{})
	stats := Statistics{MappingCount: len(items)}
	for _, item := range items {
		targets[item.TargetTable] = struct{}{}
		sources[item.SourceTable] = struct{}{}
		if strings.TrimSpace(item.Transformation) != "" {
			stats.TransformationCount++
		}
	}
	stats.TargetCount = len(targets)
	stats.SourceCount = len(sources)
	return stats
}

// DistinctTables returns the sorted distinct values selected by pick.
func DistinctTables(items []Mapping, pick func(Mapping) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, item := range items {
		name := pick(item)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TargetTableOf(m Mapping) string { return m.TargetTable }
func SourceTableOf(m Mapping) string { return m.SourceTable }

// Matrix counts mappings per (source table, target table) pair.
type Matrix struct {
	SourceTables []string `json:"sourceTables"`
	TargetTables []string `json:"targetTables"`
	// Counts[i][j] is the number of mappings from SourceTables[i] into TargetTables[j].
	Counts [][]int `json:"counts"`
}

type TransformationEntry struct {
	TargetTable    string `json:"targetTable"`
	TargetField    string `json:"targetField"`
	Transformation string `json:"transformation"`
}

// Report is the lineage report: every row, the source × target matrix, and the transformation catalog.
type Report struct {
	Lineage         []Row                 `json:"lineage"`
	Matrix          Matrix                `json:"matrix"`
	Transformations []TransformationEntry `json:"transformations"`
}

func BuildReport(items []Mapping, tf TimeFormat) Report {
	report := Report{
		Lineage:         make([]Row, 0, len(items)),
		Transformations: make([]TransformationEntry, 0),
		Matrix: Matrix{
			SourceTables: DistinctTables(items, SourceTableOf),
			TargetTables: DistinctTables(items, TargetTableOf),
		},
	}

	sourceIndex := indexOf(report.Matrix.SourceTables)
	targetIndex := indexOf(report.Matrix.TargetTables)
	report.Matrix.Counts = make([][]int, len(report.Matrix.SourceTables))
	for i := range report.Matrix.Counts {
		report.Matrix.Counts[i] = make([]int, len(report.Matrix.TargetTables))
	}

	for _, item := range items {
		report.Lineage = append(report.Lineage, item.ToRow(tf))
		report.Matrix.Counts[sourceIndex[item.SourceTable]][targetIndex[item.TargetTable]]++
		if strings.TrimSpace(item.Transformation) != "" {
			report.Transformations = append(report.Transformations, TransformationEntry{
				TargetTable:    item.TargetTable,
				TargetField:    item.TargetField,
				Transformation: item.Transformation,
			})
		}
	}
	return report
}

func indexOf(values []string) map[string]int {
	out := make(map[string]int, len(values))
	for i, value := range values {
		out[value] = i
	}
	return out
}

type TargetCount struct {
	TargetTable string `json:"targetTable"`
	Count       int    `json:"count"`
}

// Export is everything an export workbook carries: the rows plus the summary sheets.
type Export struct {
	Rows         []Row
	Statistics   Statistics
	TargetCounts []TargetCount
}

func BuildExport(items []Mapping, tf TimeFormat) Export {
	out := Export{
		Rows:       make([]Row, 0, len(items)),
		Statistics: Summarize(items),
	}
	for _, item := range items {
		out.Rows = append(out.Rows, item.ToRow(tf))
	}
	for _, group := range GroupByTarget(items) {
		out.TargetCounts = append(out.TargetCounts, TargetCount{
			TargetTable: group.TargetTable,
			Count:       len(group.Mappings),
		})
	}
	return out
}

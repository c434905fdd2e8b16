package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	domainmapping "stmap/internal/domain/mapping"
)

func sampleMappings() []domainmapping.Mapping {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return []domainmapping.Mapping{
		{ID: "m-2", TargetTable: "DIM_CUSTOMER", TargetField: "NAME", SourceTable: "STG_CUSTOMERS", SourceField: "CUST_NAME", Transformation: "UPPER(CUST_NAME)", CreatedAt: created},
		{ID: "m-3", TargetTable: "DIM_CUSTOMER", TargetField: "EMAIL", SourceTable: "STG_CUSTOMERS", SourceField: "MAIL", CreatedAt: created},
	}
}

func TestWriteTreeText(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	groups := domainmapping.GroupByTarget(sampleMappings())
	if err := writeTree(&out, outputTable, groups); err != nil {
		t.Fatalf("writeTree() error = %v", err)
	}

	want := strings.Join([]string{
		"DIM_CUSTOMER (2)",
		"├── NAME ← STG_CUSTOMERS.CUST_NAME  [UPPER(CUST_NAME)]  (m-2)",
		"└── EMAIL ← STG_CUSTOMERS.MAIL  (m-3)",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("writeTree() =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestWriteMappingsJSON(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := writeMappings(&out, "JSON", sampleMappings(), domainmapping.TimeFormat{}); err != nil {
		t.Fatalf("writeMappings() error = %v", err)
	}

	var decoded []domainmapping.Mapping
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "m-2" || decoded[1].TargetField != "EMAIL" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestWriteMappingsEmptyJSONIsArray(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := writeMappings(&out, outputJSON, nil, domainmapping.TimeFormat{}); err != nil {
		t.Fatalf("writeMappings() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Fatalf("writeMappings() = %q, want []", out.String())
	}
}

func TestWriteStatistics(t *testing.T) {
	t.Parallel()

	stats := domainmapping.Summarize(sampleMappings())

	var table bytes.Buffer
	if err := writeStatistics(&table, "", stats); err != nil {
		t.Fatalf("writeStatistics(table) error = %v", err)
	}
	for _, want := range []string{"Target Tables", "With Transformations", "Mappings"} {
		if !strings.Contains(table.String(), want) {
			t.Fatalf("table output missing %q:\n%s", want, table.String())
		}
	}

	var yamlOut bytes.Buffer
	if err := writeStatistics(&yamlOut, outputYAML, stats); err != nil {
		t.Fatalf("writeStatistics(yaml) error = %v", err)
	}
	for _, want := range []string{"targetCount: 1", "mappingCount: 2", "sourceCount: 1", "transformationCount: 1"} {
		if !strings.Contains(yamlOut.String(), want) {
			t.Fatalf("yaml output missing %q:\n%s", want, yamlOut.String())
		}
	}
}

func TestUnsupportedOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := writeStatistics(&out, "xml", domainmapping.Statistics{}); err == nil {
		t.Fatalf("writeStatistics() expected error for xml")
	}
}

func TestLineageLabel(t *testing.T) {
	t.Parallel()

	got := lineageLabel(sampleMappings()[0])
	if got != "STG_CUSTOMERS.CUST_NAME → DIM_CUSTOMER.NAME" {
		t.Fatalf("lineageLabel() = %q", got)
	}
}

package mapping

import (
	"testing"
	"time"
)

func sampleMappings() []Mapping {
	return []Mapping{
		{ID: "1", TargetTable: "DIM_PRODUCT", TargetField: "NAME", SourceTable: "STG_PRODUCTS", SourceField: "TITLE"},
		{ID: "2", TargetTable: "DIM_CUSTOMER", TargetField: "CUSTOMER_NAME", SourceTable: "STG_CUSTOMERS", SourceField: "CUST_NAME", Transformation: "UPPER(TRIM(CUST_NAME))"},
		{ID: "3", TargetTable: "DIM_PRODUCT", TargetField: "PRICE", SourceTable: "STG_PRODUCTS", SourceField: "PRICE"},
		{ID: "4", TargetTable: "DIM_CUSTOMER", TargetField: "EMAIL", SourceTable: "STG_CRM", SourceField: "EMAIL_ADDRESS", Transformation: "LOWER(EMAIL_ADDRESS)"},
	}
}

func TestGroupByTargetSortsKeysAndKeepsOrder(t *testing.T) {
	groups := GroupByTarget(sampleMappings())
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].TargetTable != "DIM_CUSTOMER" || groups[1].TargetTable != "DIM_PRODUCT" {
		t.Fatalf("group order = %s, %s", groups[0].TargetTable, groups[1].TargetTable)
	}
	if groups[0].Mappings[0].ID != "2" || groups[0].Mappings[1].ID != "4" {
		t.Fatalf("DIM_CUSTOMER members out of insertion order: %+v", groups[0].Mappings)
	}
	if groups[1].Mappings[0].ID != "1" || groups[1].Mappings[1].ID != "3" {
		t.Fatalf("DIM_PRODUCT members out of insertion order: %+v", groups[1].Mappings)
	}
}

func TestGroupByTargetEmpty(t *testing.T) {
	if groups := GroupByTarget(nil); len(groups) != 0 {
		t.Fatalf("GroupByTarget(nil) = %v", groups)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleMappings())
	want := Statistics{TargetCount: 2, MappingCount: 4, SourceCount: 3, TransformationCount: 2}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestDistinctTables(t *testing.T) {
	got := DistinctTables(sampleMappings(), SourceTableOf)
	want := []string{"STG_CRM", "STG_CUSTOMERS", "STG_PRODUCTS"}
	if len(got) != len(want) {
		t.Fatalf("DistinctTables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DistinctTables()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildReport(t *testing.T) {
	report := BuildReport(sampleMappings(), TimeFormat{Location: time.UTC})

	if len(report.Lineage) != 4 {
		t.Fatalf("len(Lineage) = %d", len(report.Lineage))
	}
	if len(report.Transformations) != 2 || report.Transformations[0].TargetField != "CUSTOMER_NAME" {
		t.Fatalf("Transformations = %+v", report.Transformations)
	}

	matrix := report.Matrix
	if len(matrix.SourceTables) != 3 || len(matrix.TargetTables) != 2 {
		t.Fatalf("matrix axes = %v x %v", matrix.SourceTables, matrix.TargetTables)
	}
	// STG_PRODUCTS -> DIM_PRODUCT twice.
	if got := matrix.Counts[2][1]; got != 2 {
		t.Fatalf("Counts[STG_PRODUCTS][DIM_PRODUCT] = %d, want 2", got)
	}
	if got := matrix.Counts[0][1]; got != 0 {
		t.Fatalf("Counts[STG_CRM][DIM_PRODUCT] = %d, want 0", got)
	}
}

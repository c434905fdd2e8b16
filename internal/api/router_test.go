package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/infrastructure/sheet"
	"stmap/internal/usecase/mapping"
)

type memoryKV struct {
	mu      sync.Mutex
	values  map[string]string
	failSet bool
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryKV) CompareAndSwap(_ context.Context, key string, old string, oldFound bool, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return false, errors.New("disk full")
	}
	current, found := m.values[key]
	if found != oldFound || (found && current != old) {
		return false, nil
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return true, nil
}

func (m *memoryKV) setFailSet(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fail
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryKV) {
	t.Helper()

	kv := &memoryKV{}
	next := 0
	svc := mapping.NewService(kv, mapping.Options{
		NewID: func() string {
			next++
			return fmt.Sprintf("m-%d", next)
		},
	})

	server := httptest.NewServer(NewRouter(context.Background(), svc))
	t.Cleanup(server.Close)
	return server, kv
}

func doJSON(t *testing.T, method string, url string, body any) *http.Response {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, url, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func customerName() domainmapping.Fields {
	return domainmapping.Fields{
		TargetTable:    "dim_customer",
		TargetField:    "customer_name",
		SourceTable:    "stg_customers",
		SourceField:    "cust_name",
		Transformation: "UPPER(TRIM(CUST_NAME))",
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, resp))
}

func TestMappingCRUD(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/mappings", customerName())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/mappings/m-1", resp.Header.Get("Location"))
	created := decodeBody[domainmapping.Mapping](t, resp)
	assert.Equal(t, "DIM_CUSTOMER", created.TargetTable)
	assert.Nil(t, created.UpdatedAt)

	resp = doJSON(t, http.MethodGet, server.URL+"/mappings/m-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CUST_NAME", decodeBody[domainmapping.Mapping](t, resp).SourceField)

	edit := customerName()
	edit.Notes = "trimmed upstream"
	resp = doJSON(t, http.MethodPut, server.URL+"/mappings/m-1", edit)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decodeBody[domainmapping.Mapping](t, resp)
	assert.Equal(t, "trimmed upstream", edited.Notes)
	assert.NotNil(t, edited.UpdatedAt)
	assert.True(t, created.CreatedAt.Equal(edited.CreatedAt))

	resp = doJSON(t, http.MethodDelete, server.URL+"/mappings/m-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/mappings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]domainmapping.Mapping](t, resp))
}

func TestErrorStatusMapping(t *testing.T) {
	server, kv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/mappings", domainmapping.Fields{TargetTable: "dim_customer"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "validation", body.Kind)
	assert.Equal(t, []string{"Target Field", "Source Table", "Source Field"}, body.Field)

	resp = doJSON(t, http.MethodPut, server.URL+"/mappings/missing", customerName())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[errorResponse](t, resp).Kind)

	resp = doJSON(t, http.MethodDelete, server.URL+"/mappings/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/mappings", strings.NewReader(`{"targetTable":`))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = raw.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	kv.setFailSet(true)
	resp = doJSON(t, http.MethodPost, server.URL+"/mappings", customerName())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "persistence", decodeBody[errorResponse](t, resp).Kind)
}

func TestSearchTreeStatsAndTables(t *testing.T) {
	server, _ := newTestServer(t)

	for _, fields := range []domainmapping.Fields{
		customerName(),
		{TargetTable: "fact_sales", TargetField: "amount", SourceTable: "stg_orders", SourceField: "total", Notes: "gross amount"},
		{TargetTable: "dim_customer", TargetField: "email", SourceTable: "stg_customers", SourceField: "email_address"},
	} {
		resp := doJSON(t, http.MethodPost, server.URL+"/mappings", fields)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/mappings?q=GROSS", nil)
	found := decodeBody[[]domainmapping.Mapping](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "FACT_SALES", found[0].TargetTable)

	resp = doJSON(t, http.MethodGet, server.URL+"/mappings?target=dim_customer", nil)
	assert.Len(t, decodeBody[[]domainmapping.Mapping](t, resp), 2)

	resp = doJSON(t, http.MethodGet, server.URL+"/mappings?target=a&source=b", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/tree", nil)
	groups := decodeBody[[]domainmapping.Group](t, resp)
	require.Len(t, groups, 2)
	assert.Equal(t, "DIM_CUSTOMER", groups[0].TargetTable)
	assert.Equal(t, []string{"m-1", "m-3"}, []string{groups[0].Mappings[0].ID, groups[0].Mappings[1].ID})

	resp = doJSON(t, http.MethodGet, server.URL+"/stats", nil)
	assert.Equal(t, domainmapping.Statistics{TargetCount: 2, MappingCount: 3, SourceCount: 2, TransformationCount: 1}, decodeBody[domainmapping.Statistics](t, resp))

	resp = doJSON(t, http.MethodGet, server.URL+"/tables?side=source", nil)
	assert.Equal(t, []string{"STG_CUSTOMERS", "STG_ORDERS"}, decodeBody[[]string](t, resp))

	resp = doJSON(t, http.MethodGet, server.URL+"/tables?side=middle", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportImportRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	for _, fields := range []domainmapping.Fields{
		customerName(),
		{TargetTable: "fact_sales", TargetField: "amount", SourceTable: "stg_orders", SourceField: "total"},
	} {
		resp := doJSON(t, http.MethodPost, server.URL+"/mappings", fields)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/export?format=csv")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sheet.FormatCSV.ContentType(), resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")

	var exported bytes.Buffer
	_, err = exported.ReadFrom(resp.Body)
	require.NoError(t, err)

	importResp, err := http.Post(server.URL+"/import?format=csv&mode=replace", "text/csv", bytes.NewReader(exported.Bytes()))
	require.NoError(t, err)
	defer func() { _ = importResp.Body.Close() }()
	require.Equal(t, http.StatusOK, importResp.StatusCode)
	assert.Equal(t, mapping.ImportResult{ImportedCount: 2}, decodeBody[mapping.ImportResult](t, importResp))

	listResp := doJSON(t, http.MethodGet, server.URL+"/mappings", nil)
	items := decodeBody[[]domainmapping.Mapping](t, listResp)
	require.Len(t, items, 2)
	assert.Equal(t, "m-3", items[0].ID)
	assert.Equal(t, "UPPER(TRIM(CUST_NAME))", items[0].Transformation)
}

func TestImportRejectsBadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	testCases := []struct {
		name  string
		query string
		body  string
	}{
		{name: "missing mode", query: "format=csv", body: "Target Table\n"},
		{name: "unknown format", query: "format=xls&mode=append", body: ""},
		{name: "missing required header", query: "format=csv&mode=append", body: "Target Table,Notes\nDIM,x\n"},
		{name: "empty csv", query: "format=csv&mode=append", body: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/import?"+testCase.query, "text/csv", strings.NewReader(testCase.body))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestReportIsWorkbook(t *testing.T) {
	server, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, server.URL+"/mappings", customerName())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	report, err := http.Get(server.URL + "/report")
	require.NoError(t, err)
	defer func() { _ = report.Body.Close() }()
	require.Equal(t, http.StatusOK, report.StatusCode)

	book, err := excelize.OpenReader(report.Body)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	assert.Equal(t, []string{sheet.SheetLineage, sheet.SheetMatrix, sheet.SheetTransformations}, book.GetSheetList())
}

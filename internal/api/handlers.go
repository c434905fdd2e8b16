package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/errs"
	"stmap/internal/infrastructure/sheet"
)

type errorResponse struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	Field []string `json:"fields,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listMappings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target := strings.TrimSpace(query.Get("target"))
	source := strings.TrimSpace(query.Get("source"))

	var (
		items []domainmapping.Mapping
		err   error
	)
	switch {
	case target != "" && source != "":
		writeError(w, r, &domainmapping.ValidationError{Reason: "target and source filters are mutually exclusive"})
		return
	case target != "":
		items, err = h.svc.ByTargetTable(r.Context(), target)
	case source != "":
		items, err = h.svc.BySourceTable(r.Context(), source)
	default:
		items, err = h.svc.Search(r.Context(), query.Get("q"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domainmapping.Mapping{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) addMapping(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.svc.Add(r.Context(), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/mappings/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getMapping(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *handler) editMapping(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	edited, err := h.svc.Edit(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edited)
}

func (h *handler) deleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) tree(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.GroupByTarget(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []domainmapping.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) tables(w http.ResponseWriter, r *http.Request) {
	var (
		tables []string
		err    error
	)
	switch side := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("side"))); side {
	case "", "target":
		tables, err = h.svc.TargetTables(r.Context())
	case "source":
		tables, err = h.svc.SourceTables(r.Context())
	default:
		err = &domainmapping.ValidationError{Reason: fmt.Sprintf("unsupported side %q (expected: target or source)", side)}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	formatRaw := r.URL.Query().Get("format")
	if strings.TrimSpace(formatRaw) == "" {
		formatRaw = string(sheet.FormatXLSX)
	}
	format, err := sheet.ParseFormat(formatRaw)
	if err != nil {
		writeError(w, r, &domainmapping.ValidationError{Reason: err.Error()})
		return
	}

	export, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.Encode(&buf, format, export); err != nil {
		writeError(w, r, errs.Wrap(err, "encode export"))
		return
	}

	filename := fmt.Sprintf("mappings_export_%s.%s", h.now().Format("20060102_150405"), format)
	writeAttachment(w, r, format.ContentType(), filename, buf.Bytes())
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.LineageReport(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := sheet.EncodeReport(&buf, report); err != nil {
		writeError(w, r, errs.Wrap(err, "encode lineage report"))
		return
	}
	writeAttachment(w, r, sheet.FormatXLSX.ContentType(), "lineage_report.xlsx", buf.Bytes())
}

// importTable reads the raw file from the request body. The format comes from the
// format query parameter.
func (h *handler) importTable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := sheet.ParseFormat(query.Get("format"))
	if err != nil {
		writeError(w, r, &domainmapping.ValidationError{Reason: err.Error()})
		return
	}
	mode, err := domainmapping.ParseImportMode(query.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	table, err := sheet.Decode(body, format, "request body")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.ImportTable(r.Context(), table, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (domainmapping.Fields, error) {
	var fields domainmapping.Fields
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fields); err != nil {
		return domainmapping.Fields{}, &domainmapping.ParseError{Source: "request body", Err: err}
	}
	return fields, nil
}

func statusOf(err error) int {
	switch errs.KindOf(err) {
	case "validation", "parse":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "http request failed", slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Debug(r.Context(), "http request rejected", slog.Any("err", errs.Loggable(err)))
	}

	response := errorResponse{Error: err.Error(), Kind: errs.KindOf(err)}
	var validationErr *domainmapping.ValidationError
	if errors.As(err, &validationErr) {
		response.Field = validationErr.Fields
	}
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeAttachment(w http.ResponseWriter, r *http.Request, contentType string, filename string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		logging.Warn(r.Context(), "write attachment failed", slog.Any("err", errs.Loggable(err)))
	}
}

// Package api exposes the mapping store over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
	"stmap/internal/usecase/mapping"
)

// MappingService is the part of the mapping use case the HTTP surface needs.
type MappingService interface {
	Add(ctx context.Context, fields domainmapping.Fields) (domainmapping.Mapping, error)
	Edit(ctx context.Context, id string, fields domainmapping.Fields) (domainmapping.Mapping, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domainmapping.Mapping, error)
	Search(ctx context.Context, term string) ([]domainmapping.Mapping, error)
	ByTargetTable(ctx context.Context, table string) ([]domainmapping.Mapping, error)
	BySourceTable(ctx context.Context, table string) ([]domainmapping.Mapping, error)
	GroupByTarget(ctx context.Context) ([]domainmapping.Group, error)
	Statistics(ctx context.Context) (domainmapping.Statistics, error)
	TargetTables(ctx context.Context) ([]string, error)
	SourceTables(ctx context.Context) ([]string, error)
	Export(ctx context.Context) (domainmapping.Export, error)
	ImportTable(ctx context.Context, table domainmapping.Table, mode domainmapping.ImportMode) (mapping.ImportResult, error)
	LineageReport(ctx context.Context) (domainmapping.Report, error)
}

var _ MappingService = (*mapping.Service)(nil)

// maxUploadBytes caps the request body accepted by POST /import.
const maxUploadBytes = 32 << 20

type handler struct {
	svc MappingService
	now func() time.Time
}

// NewRouter builds the HTTP routes. Request contexts inherit the logger and attrs
// carried by base.
func NewRouter(base context.Context, svc MappingService) http.Handler {
	h := &handler{svc: svc, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withRequestLogging(base))

	r.Get("/healthz", h.health)

	r.Route("/mappings", func(r chi.Router) {
		r.Get("/", h.listMappings)
		r.Post("/", h.addMapping)
		r.Get("/{id}", h.getMapping)
		r.Put("/{id}", h.editMapping)
		r.Delete("/{id}", h.deleteMapping)
	})

	r.Get("/tree", h.tree)
	r.Get("/stats", h.stats)
	r.Get("/tables", h.tables)
	r.Get("/export", h.export)
	r.Post("/import", h.importTable)
	r.Get("/report", h.report)

	return r
}

func withRequestLogging(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLogger(r.Context(), logging.Logger(base))
			ctx = logging.WithAttrs(ctx, logging.Attrs(base)...)
			ctx = logging.WithAttrs(
				ctx,
				slog.String("component", "api"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			logging.Debug(
				ctx,
				"http request served",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(started)),
			)
		})
	}
}

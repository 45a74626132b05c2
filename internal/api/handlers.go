// Package api serves stored regeneration records and their artifacts over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/forest-guardian/regen-insights/internal/output"
	"github.com/forest-guardian/regen-insights/internal/pipeline"
	"github.com/forest-guardian/regen-insights/internal/storage"
)

const maxListLimit = 500

type RecordReader interface {
	Get(ctx context.Context, id string) (pipeline.Record, error)
	List(ctx context.Context, filter storage.ListFilter) ([]pipeline.Record, error)
}

type ArtifactReader interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

type Handler struct {
	Records   RecordReader
	Artifacts ArtifactReader
	Signer    *storage.URLSigner
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewHandler(records RecordReader, artifacts ArtifactReader, signer *storage.URLSigner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Records:   records,
		Artifacts: artifacts,
		Signer:    signer,
		Logger:    logger,
		Now:       time.Now,
	}
}

// NewRouter mounts the handler routes with CORS opened to allowedOrigins.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/records", h.ListRecords)
	r.Get("/records.csv", h.ExportRecords)
	r.Get("/records/{id}", h.GetRecord)
	r.Get("/records/{id}/url", h.GetRecordURL)
	r.Get("/artifacts/*", h.GetArtifact)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseFilter(r *http.Request) (storage.ListFilter, error) {
	q := r.URL.Query()
	f := storage.ListFilter{AreaName: q.Get("area")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if f.Limit == 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("since must be an RFC 3339 timestamp")
		}
		f.Since = t
	}
	return f, nil
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.Records.List(r.Context(), f)
	if err != nil {
		h.internalError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.Records.List(r.Context(), f)
	if err != nil {
		h.internalError(w, "export records", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="regeneration_records.csv"`)
	if err := storage.ExportCSV(w, records); err != nil {
		h.Logger.Error("failed to write CSV", "error", err)
	}
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetRecordURL returns time-bounded links to the record's artifact. When the
// run stored an overlay, links to the PNG preview and GeoJSON footprint are
// added along with the footprint bounds ([minx, miny, maxx, maxy]) and CRS.
func (h *Handler) GetRecordURL(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		writeError(w, http.StatusNotImplemented, "URL signing is not configured")
		return
	}
	record, ok := h.lookup(w, r)
	if !ok {
		return
	}
	now := h.Now()
	link, expiresAt := h.Signer.Sign(record.StoragePath, now)
	resp := map[string]interface{}{
		"url":        link,
		"expires_at": expiresAt,
	}

	footprint := output.FootprintName(record.StoragePath)
	data, err := h.Artifacts.Get(r.Context(), footprint)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		h.internalError(w, "read footprint", err)
		return
	default:
		bound, crs, err := output.ParseFootprint(data)
		if err != nil {
			h.Logger.Warn("unreadable footprint", "path", footprint, "error", err)
			break
		}
		resp["preview_url"], _ = h.Signer.Sign(output.PreviewName(record.StoragePath), now)
		resp["footprint_url"], _ = h.Signer.Sign(footprint, now)
		resp["bounds"] = [4]float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
		resp["crs"] = crs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		writeError(w, http.StatusNotImplemented, "URL signing is not configured")
		return
	}
	name := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := h.Signer.Verify(name, q.Get("expires"), q.Get("signature"), h.Now()); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	data, err := h.Artifacts.Get(r.Context(), name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	case errors.Is(err, storage.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.internalError(w, "read artifact", err)
		return
	}

	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (pipeline.Record, bool) {
	id := chi.URLParam(r, "id")
	record, err := h.Records.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return pipeline.Record{}, false
	}
	if err != nil {
		h.internalError(w, "get record", err)
		return pipeline.Record{}, false
	}
	return record, true
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".png":
		return output.PreviewContentType
	case ".geojson":
		return output.FootprintContentType
	default:
		return "application/octet-stream"
	}
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

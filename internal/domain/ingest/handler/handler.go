// Package handler exposes the ingestion pipeline over HTTP.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/aggregate"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/service"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/storage"
)

// maxUploadBytes bounds one upload request. Exports are small; anything
// larger is a wrong file.
const maxUploadBytes = 50 << 20

// IngestHandler handles upload requests.
type IngestHandler struct {
	svc     *service.IngestService
	storage storage.Storage
	logger  *slog.Logger
}

// NewIngestHandler constructs a new handler.
func NewIngestHandler(svc *service.IngestService, store storage.Storage, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, storage: store, logger: logger}
}

// Register mounts the handler's routes on mux.
func (h *IngestHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ingest", h.handleIngest)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type ingestResponse struct {
	WeekStart   string                   `json:"week_start"`
	WeekEnd     string                   `json:"week_end"`
	Format      string                   `json:"format"`
	RowsKept    int                      `json:"rows_kept"`
	RowsDropped int                      `json:"rows_dropped"`
	NewMembers  int                      `json:"new_members"`
	Metrics     *aggregate.WeeklyMetrics `json:"metrics"`
}

type errorResponse struct {
	Error string `json:"error"`
	File  string `json:"file,omitempty"`
}

// handleIngest accepts a multipart upload: field "revenue" holds the revenue
// export, optional field "roster" holds the membership roster. The run is
// synchronous; the response carries the persisted weekly record.
func (h *IngestHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err), "")
		return
	}

	revenueName, revenueData, err := formFile(r, "revenue")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, "")
		return
	}

	in := service.Input{RevenueName: revenueName, RevenueData: revenueData}
	if rosterName, rosterData, err := formFile(r, "roster"); err == nil {
		in.RosterName = rosterName
		in.RosterData = rosterData
	}

	// Keep the originals so a disputed week can be re-derived from source.
	h.archive(r, revenueName, revenueData)
	if len(in.RosterData) > 0 {
		h.archive(r, in.RosterName, in.RosterData)
	}

	result, err := h.svc.Ingest(r.Context(), in)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ingestResponse{
		WeekStart:   result.Week.Start.Format("2006-01-02"),
		WeekEnd:     result.Week.End.Format("2006-01-02"),
		Format:      string(result.Format),
		RowsKept:    result.RowStats.Kept,
		RowsDropped: result.RowStats.Dropped,
		NewMembers:  result.NewMembers.Total(),
		Metrics:     result.Metrics,
	})
}

func (h *IngestHandler) archive(r *http.Request, name string, data []byte) {
	if _, err := h.storage.Save(r.Context(), name, "application/octet-stream", bytes.NewReader(data)); err != nil {
		h.logger.Warn("failed to archive upload", slog.String("file", name), slog.Any("error", err))
	}
}

func (h *IngestHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeIngestError maps pipeline failures onto status codes: bad files are
// the client's problem, invariant violations are ours.
func (h *IngestHandler) writeIngestError(w http.ResponseWriter, err error) {
	var fileErr *service.FileError
	if errors.As(err, &fileErr) {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, sniffer.ErrUnrecognizedFormat) || errors.Is(err, sniffer.ErrEmptyFile) {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, fileErr.Err, fileErr.File)
		return
	}

	var zero *aggregate.ZeroRevenueError
	if errors.As(err, &zero) {
		h.writeError(w, http.StatusUnprocessableEntity, err, "")
		return
	}

	h.logger.Error("ingestion failed", slog.Any("error", err))
	h.writeError(w, http.StatusInternalServerError, errors.New("internal error"), "")
}

func (h *IngestHandler) writeError(w http.ResponseWriter, status int, err error, file string) {
	h.writeJSON(w, status, errorResponse{Error: err.Error(), File: file})
}

func (h *IngestHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write response", slog.Any("error", err))
	}
}

func formFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing %q file: %w", field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %q file: %w", field, err)
	}
	return header.Filename, data, nil
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"securemeet/relaygate/pkg/proxy/types"
)

// Flusher exports buffered records on demand. *capture.Pipeline
// implements it.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// ExportResponse is the body of POST /proxy/export.
type ExportResponse struct {
	Status   string `json:"status"`
	Exported int    `json:"exported"`
	Error    string `json:"error,omitempty"`
}

// ExportHandler serves POST /proxy/export.
type ExportHandler struct {
	flusher Flusher
	logger  *slog.Logger
}

// NewExportHandler creates an export handler.
func NewExportHandler(flusher Flusher) *ExportHandler {
	return &ExportHandler{
		flusher: flusher,
		logger:  slog.Default().With("component", "proxy.handlers"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		types.NewMethodNotAllowedError("use POST").Write(w)
		return
	}

	n, err := h.flusher.Flush(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "on-demand export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ExportResponse{Status: "error", Error: err.Error()})
		return
	}

	h.logger.InfoContext(r.Context(), "on-demand export completed", "exported", n)
	writeJSON(w, http.StatusOK, ExportResponse{Status: "success", Exported: n})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"securemeet/relaygate/pkg/proxy/types"
)

// BufferInspector reports how many records await export.
type BufferInspector interface {
	Len() int
}

// StatusResponse is the body of GET /proxy/status.
type StatusResponse struct {
	Status          string   `json:"status"`
	Services        []string `json:"services"`
	RecordsInMemory int      `json:"recordsInMemory"`
}

// StatusHandler serves GET /proxy/status.
type StatusHandler struct {
	services []string
	buffer   BufferInspector
}

// NewStatusHandler creates a status handler for the given service names.
func NewStatusHandler(services []string, buffer BufferInspector) *StatusHandler {
	return &StatusHandler{services: services, buffer: buffer}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		types.NewMethodNotAllowedError("use GET").Write(w)
		return
	}

	services := h.services
	if services == nil {
		services = []string{}
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          "running",
		Services:        services,
		RecordsInMemory: h.buffer.Len(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

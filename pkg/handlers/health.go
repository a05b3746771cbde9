package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-joins/pkg/config"
)

// DatasourceLister lists configured datasources. Implemented by datasource.Manager.
type DatasourceLister interface {
	Sources() []datasource.Source
}

// HealthResponse reports liveness plus the datasources requests may reference.
type HealthResponse struct {
	Status      string                   `json:"status"`
	Datasources []datasource.Source      `json:"datasources"`
	Adapters    []datasource.AdapterInfo `json:"adapters"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	sources DatasourceLister
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. sources may be nil.
func NewHealthHandler(cfg *config.Config, sources DatasourceLister, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, sources: sources, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:      "ok",
		Datasources: []datasource.Source{},
		Adapters:    datasource.RegisteredAdapters(),
	}
	if h.sources != nil {
		response.Datasources = h.sources.Sources()
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get hostname")
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-joins",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

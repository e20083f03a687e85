package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// liveCheckTimeout bounds the live database ping in /health.
const liveCheckTimeout = 3 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports engine health. The engine keeps serving whitelisted
// tables when the live database is down, so that case is "degraded", not a failure.
type HealthResponse struct {
	Status       string      `json:"status"`
	StrictMode   bool        `json:"strict_mode"`
	LiveDatabase *LiveStatus `json:"live_database,omitempty"`
	Preload      PreloadInfo `json:"preload"`
}

// LiveStatus is the result of pinging the live database.
type LiveStatus struct {
	Dialect string `json:"dialect"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// PreloadInfo summarizes preload completion.
type PreloadInfo struct {
	StaticCompleted  bool `json:"static_completed"`
	DynamicCompleted bool `json:"dynamic_completed"`
	FailedTables     int  `json:"failed_tables"`
}

// HealthHandler handles health, readiness, ping and metrics endpoints.
type HealthHandler struct {
	cfg          *config.Config
	resolver     services.SchemaResolver
	introspector datasource.Introspector
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. introspector may be nil when
// no live database is configured.
func NewHealthHandler(cfg *config.Config, resolver services.SchemaResolver, introspector datasource.Introspector, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, resolver: resolver, introspector: introspector, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	preload := h.resolver.PreloadStatus()
	response := HealthResponse{
		Status:     "ok",
		StrictMode: h.resolver.StrictMode(),
		Preload: PreloadInfo{
			StaticCompleted:  preload.StaticPreloadCompleted,
			DynamicCompleted: preload.DynamicPreloadCompleted,
			FailedTables:     len(preload.FailedTables),
		},
	}

	if h.introspector != nil {
		ctx, cancel := context.WithTimeout(r.Context(), liveCheckTimeout)
		defer cancel()

		live := &LiveStatus{Dialect: h.introspector.Dialect().String(), Status: "ok"}
		if err := h.introspector.TestConnection(ctx); err != nil {
			live.Status = "error"
			live.Error = logging.SanitizeError(err)
			response.Status = "degraded"
			h.logger.Warn("Live database health check failed", logging.ErrorField(err))
		}
		response.LiveDatabase = live
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ready handles GET /ready requests. When preload runs on startup the engine
// is not ready until the static pass has finished.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Schema.PreloadOnStartup && !h.resolver.PreloadStatus().StaticPreloadCompleted {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "preloading", "static schema preload has not completed")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-schema-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

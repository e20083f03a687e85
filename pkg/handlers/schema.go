package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/services"
)

// SchemaHandler exposes the resolver over plain HTTP for callers that do not speak MCP.
type SchemaHandler struct {
	resolver services.SchemaResolver
	logger   *zap.Logger
}

func NewSchemaHandler(resolver services.SchemaResolver, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{resolver: resolver, logger: logger}
}

// RegisterRoutes registers the schema routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema/tables", h.ListTables)
	mux.HandleFunc("GET /api/schema/tables/{table}", h.GetTable)
	mux.HandleFunc("GET /api/schema/tables/{table}/dependencies", h.GetDependencies)
	mux.HandleFunc("GET /api/schema/summary", h.Summary)
	mux.HandleFunc("GET /api/schema/preload", h.PreloadStatus)
	mux.HandleFunc("POST /api/schema/reload", h.Reload)
	mux.HandleFunc("DELETE /api/schema/cache/{pattern}", h.Invalidate)
}

func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables := h.resolver.ListTables()
	h.write(w, map[string]any{"tables": tables, "count": len(tables)})
}

// GetTable handles GET /api/schema/tables/{table}?live=true&ttl_minutes=N.
func (h *SchemaHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")

	var opts []services.ResolveOption
	if raw := r.URL.Query().Get("ttl_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "ttl_minutes must be a positive integer")
			return
		}
		opts = append(opts, services.WithTTL(time.Duration(minutes)*time.Minute))
	}

	var (
		desc *models.TableDescriptor
		err  error
	)
	if live, _ := strconv.ParseBool(r.URL.Query().Get("live")); live {
		desc, err = h.resolver.ResolveLive(r.Context(), table, opts...)
	} else {
		desc, err = h.resolver.Resolve(r.Context(), table, opts...)
	}
	if err != nil {
		h.fail(w, table, err)
		return
	}
	h.write(w, desc)
}

func (h *SchemaHandler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	deps, err := h.resolver.Dependencies(r.Context(), table)
	if err != nil {
		h.fail(w, table, err)
		return
	}
	h.write(w, map[string]any{"table_name": models.NormalizeTableName(table), "dependencies": deps})
}

func (h *SchemaHandler) Summary(w http.ResponseWriter, r *http.Request) {
	h.write(w, h.resolver.Summary())
}

func (h *SchemaHandler) PreloadStatus(w http.ResponseWriter, r *http.Request) {
	h.write(w, h.resolver.PreloadStatus())
}

func (h *SchemaHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.resolver.Reload(r.Context()); err != nil {
		h.logger.Warn("Schema reload failed", logging.ErrorField(err))
		_ = WriteResolveError(w, err)
		return
	}
	preload := h.resolver.PreloadStatus()
	h.write(w, map[string]any{
		"reloaded":  true,
		"tables":    h.resolver.Summary().TotalTables,
		"preloaded": len(preload.StaticTables) + len(preload.DynamicTables),
	})
}

func (h *SchemaHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	pattern := r.PathValue("pattern")
	n, err := h.resolver.Invalidate(pattern)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_pattern", err.Error())
		return
	}
	h.write(w, map[string]any{"pattern": pattern, "invalidated": n})
}

func (h *SchemaHandler) fail(w http.ResponseWriter, table string, err error) {
	h.logger.Debug("Schema lookup failed", zap.String("table", table), logging.ErrorField(err))
	if werr := WriteResolveError(w, err); werr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(werr))
	}
}

func (h *SchemaHandler) write(w http.ResponseWriter, v any) {
	if err := WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Package api provides HTTP handlers for the analytics query REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"querybatch/internal/catalog"
	"querybatch/internal/domain"
	"querybatch/internal/engine"
	"querybatch/internal/middleware"
)

// Handler serves the query endpoints.
type Handler struct {
	engine   *engine.Engine
	catalog  *catalog.Catalog
	resolver domain.DomainResolver
	logger   *slog.Logger
}

// NewHandler creates a Handler. The resolver is optional; without one the
// site domain stays unknown and self-referral exclusions are disabled.
func NewHandler(eng *engine.Engine, cat *catalog.Catalog, resolver domain.DomainResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: eng, catalog: cat, resolver: resolver, logger: logger}
}

// Routes builds the chi router for the API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", h.Health)
	r.Route("/v1/query", func(r chi.Router) {
		r.Get("/types", h.ListTypes)
		r.Get("/types/{type}/compatible", h.CompatibleTypes)
		r.Post("/compile", h.CompileQuery)
		r.Post("/", h.ExecuteQuery)
		r.Post("/batch", h.ExecuteBatch)
	})
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTypes returns every registered query type.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": h.catalog.Types()})
}

// CompatibleTypes returns the query types that share a result schema with
// the given type and can therefore be batched together.
func (h *Handler) CompatibleTypes(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	if _, ok := h.catalog.Get(typeName); !ok {
		writeError(w, domain.ErrUnknownType("unknown query type %q", typeName))
		return
	}
	compatible := h.engine.CompatibleTypesOf(typeName)
	if compatible == nil {
		compatible = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"type": typeName, "compatible": compatible})
}

// CompileQuery compiles a single request and returns the SQL and parameter
// bindings without executing anything.
func (h *Handler) CompileQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	compiled, err := h.engine.CompileType(req.Type, req, h.websiteDomain(r, req.ProjectID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sql":    compiled.SQL,
		"params": compiled.Params,
	})
}

// ExecuteQuery compiles and executes a single request.
func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	rows, err := h.engine.Execute(r.Context(), req.Type, req, h.websiteDomain(r, req.ProjectID))
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"type": req.Type, "data": rows})
}

type batchRequestBody struct {
	ProjectID string                `json:"project_id"`
	Timezone  string                `json:"timezone,omitempty"`
	Queries   []domain.BatchRequest `json:"queries"`
}

// ExecuteBatch runs a set of requests, batching schema-compatible ones into
// combined statements. The response carries one result per input query, in
// input order; failed items report their error in place.
func (h *Handler) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	for i := range body.Queries {
		if body.Queries[i].Request.ProjectID == "" {
			body.Queries[i].Request.ProjectID = body.ProjectID
		}
	}

	results := h.engine.ExecuteBatch(r.Context(), body.Queries, engine.BatchOptions{
		WebsiteDomain: h.websiteDomain(r, body.ProjectID),
		Timezone:      body.Timezone,
	})
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// websiteDomain resolves the project's site domain, logging and degrading
// to unknown on failure.
func (h *Handler) websiteDomain(r *http.Request, projectID string) string {
	if h.resolver == nil || projectID == "" {
		return ""
	}
	d, err := h.resolver.ResolveDomain(r.Context(), projectID)
	if err != nil {
		h.logger.Warn("resolve domain failed",
			"project_id", projectID,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
		return ""
	}
	return d
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatusFromDomainError(err), errorBody(err.Error()))
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// Package http exposes compiled event types over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/app"
	"github.com/artpar/eventdsl/core/event"
	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/openapi"
	"github.com/artpar/eventdsl/core/runtime"
	"github.com/artpar/eventdsl/pkg/jsonapi"
)

// ResourceType is the JSON:API type of an event type resource.
const ResourceType = "event-types"

// DefaultMaxBodyBytes limits request bodies.
const DefaultMaxBodyBytes = 1 << 20

// EvaluationRequest is the body of the validate and render endpoints.
type EvaluationRequest struct {
	Event   event.Event   `json:"event"`
	Context event.Context `json:"context"`

	// Timezone is an IANA zone name used as the context's calendar location.
	Timezone string `json:"timezone,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status"`
	Types  int    `json:"types"`
}

// Handler serves the event type endpoints.
type Handler struct {
	registry     *runtime.Registry
	catalog      *app.CatalogService
	logger       zerolog.Logger
	maxBodyBytes int64
}

// NewHandler creates a handler over registry. catalog may be nil; the
// catalog endpoints then report 503.
func NewHandler(registry *runtime.Registry, catalog *app.CatalogService, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:     registry,
		catalog:      catalog,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Health reports liveness and the number of loaded types.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Types: h.registry.Len()})
}

// ListTypes lists the loaded types in load order, paginated.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	page, perPage := jsonapi.ParsePaginationParams(r.URL.Query(), 20)
	p := jsonapi.NewPagination(0, page, perPage, r.URL.Path)

	runtimes := jsonapi.Paginate(h.registry.Runtimes(), p)
	resources := make([]jsonapi.Resource, 0, len(runtimes))
	for _, rt := range runtimes {
		resources = append(resources, typeResource(rt, false))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, p)
}

// GetType returns one type with its declaration and schema.
func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, typeResource(rt, true))
}

// GetSchema returns the payload schema of a type.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rt.Schema())
}

// GetBehavior returns the static behavior flags of a type.
func (h *Handler) GetBehavior(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	behavior := rt.Behavior()
	if behavior == nil {
		behavior = map[string]any{}
	}
	writeJSON(w, http.StatusOK, behavior)
}

// Validate validates the submitted event. Validation failures are part of
// a 200 response; only malformed requests are errors.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.Validate(req.Event, req.Context))
}

// Render renders the submitted event. A display expression that cannot be
// evaluated yields 422.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	out, err := rt.Render(req.Event, req.Context)
	if err != nil {
		var ee *expr.EvaluationError
		if errors.As(err, &ee) {
			jsonapi.WriteError(w, jsonapi.ErrEvaluation(ee.Path, err.Error()))
			return
		}
		h.logger.Error().Err(err).Str("type", rt.ID()).Msg("render failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CatalogStatus returns the outcome of the last catalog reload.
func (h *Handler) CatalogStatus(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("no catalog configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Status())
}

// ReloadCatalog reloads the catalog from its sources.
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("no catalog configured"))
		return
	}
	if err := h.catalog.Reload(r.Context()); err != nil {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusUnprocessableEntity, "reload_failed", "Reload Failed").
			Detail(err.Error()).
			Build())
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Status())
}

// OpenAPISpec serves the OpenAPI description of the loaded types.
func OpenAPISpec(svc *openapi.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.Spec(baseURL(r)).ToJSON()
		if err != nil {
			jsonapi.WriteError(w, jsonapi.ErrInternal(err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*runtime.Runtime, bool) {
	id := chi.URLParam(r, "id")
	rt, err := h.registry.Lookup(id)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrUnknownType(id))
		return nil, false
	}
	return rt, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (EvaluationRequest, bool) {
	var req EvaluationRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("failed to read request body")
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Failed to read request body"))
		return req, false
	}
	if int64(len(body)) > h.maxBodyBytes {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "body_too_large", "Request Entity Too Large").
			Detailf("Request body exceeds %d bytes", h.maxBodyBytes).
			Build())
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail("Invalid JSON: "+err.Error()).
			Pointer("/").
			Build())
		return req, false
	}

	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
				Detailf("Unknown timezone %q", req.Timezone).
				Pointer("/timezone").
				Build())
			return req, false
		}
		req.Context.Location = loc
	}
	return req, true
}

func typeResource(rt *runtime.Runtime, full bool) jsonapi.Resource {
	b := jsonapi.NewResource(ResourceType, rt.ID()).
		Attr("name", rt.Name()).
		Attr("description", rt.Description()).
		Link("/types/" + rt.ID())
	if full {
		b.Attr("declaration", rt.Declaration()).
			Attr("schema", rt.Schema()).
			Attr("behavior", rt.Behavior())
	}
	return b.Build()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

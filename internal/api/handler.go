// Package api provides the HTTP API over semantic models and the query compiler.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cubesql/internal/domain"
)

// maxBodyBytes bounds request bodies; schemas and pivot row sets can be large.
const maxBodyBytes = 16 << 20

// semanticService defines the semantic layer operations used by the handler.
type semanticService interface {
	CreateSemanticModel(ctx context.Context, principal string, req domain.CreateSemanticModelRequest) (*domain.SemanticModel, error)
	GetSemanticModel(ctx context.Context, name string) (*domain.SemanticModel, error)
	ListSemanticModels(ctx context.Context, page domain.PageRequest) ([]domain.SemanticModel, int64, error)
	UpdateSemanticModel(ctx context.Context, name string, req domain.UpdateSemanticModelRequest) (*domain.SemanticModel, error)
	DeleteSemanticModel(ctx context.Context, name string) error

	EntityType(ctx context.Context, model, entity string) (*domain.EntityType, error)
	Explain(ctx context.Context, model, entity string, q domain.Query) (*domain.Statement, error)
	Pivot(ctx context.Context, model, entity string, q domain.Query, rows []map[string]any) (*domain.PivotResult, error)
	Run(ctx context.Context, model, entity string, q domain.Query, exec domain.QueryExecutor) (*domain.PivotResult, error)
	MemberStatements(ctx context.Context, model, entity string, ref domain.DimensionRef) ([]domain.MemberStatement, error)
	Members(ctx context.Context, model, entity string, ref domain.DimensionRef, exec domain.QueryExecutor) ([]domain.LevelMembers, error)
	AddCalculatedMeasure(ctx context.Context, model, entity string, cm domain.CalculatedMember) error
}

// APIHandler serves the REST API.
type APIHandler struct {
	semantics semanticService
	exec      domain.QueryExecutor
	logger    *slog.Logger
}

// NewHandler creates an APIHandler. exec may be nil, in which case the
// endpoints that execute SQL answer 501.
func NewHandler(semantics semanticService, exec domain.QueryExecutor, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{semantics: semantics, exec: exec, logger: logger}
}

// Routes registers the API endpoints on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/models", h.ListSemanticModels)
	r.Post("/models", h.CreateSemanticModel)
	r.Route("/models/{model}", func(r chi.Router) {
		r.Get("/", h.GetSemanticModel)
		r.Patch("/", h.UpdateSemanticModel)
		r.Delete("/", h.DeleteSemanticModel)

		r.Route("/entities/{entity}", func(r chi.Router) {
			r.Get("/", h.GetEntityType)
			r.Post("/compile", h.CompileQuery)
			r.Post("/pivot", h.PivotRows)
			r.Post("/query", h.RunQuery)
			r.Post("/members", h.ListMembers)
			r.Post("/measures", h.AddCalculatedMeasure)
		})
	})
}

// ListSemanticModels lists semantic models.
func (h *APIHandler) ListSemanticModels(w http.ResponseWriter, r *http.Request) {
	page := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid max_results %q", v))
			return
		}
		page.MaxResults = n
	}
	models, total, err := h.semantics.ListSemanticModels(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := make([]SemanticModel, len(models))
	for i, m := range models {
		data[i] = semanticModelToAPI(m)
	}
	writeJSON(w, http.StatusOK, PaginatedSemanticModels{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

// CreateSemanticModel stores a new model.
func (h *APIHandler) CreateSemanticModel(w http.ResponseWriter, r *http.Request) {
	var body CreateSemanticModelBody
	if !h.decode(w, r, &body) {
		return
	}
	m, err := h.semantics.CreateSemanticModel(r.Context(), principalFromRequest(r), domain.CreateSemanticModelRequest{
		Name:        body.Name,
		Description: body.Description,
		Dialect:     body.Dialect,
		Catalog:     body.Catalog,
		Schema:      body.Schema,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, semanticModelToAPI(*m))
}

// GetSemanticModel returns one model.
func (h *APIHandler) GetSemanticModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.semantics.GetSemanticModel(r.Context(), chi.URLParam(r, "model"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, semanticModelToAPI(*m))
}

// UpdateSemanticModel applies a partial update.
func (h *APIHandler) UpdateSemanticModel(w http.ResponseWriter, r *http.Request) {
	var body UpdateSemanticModelBody
	if !h.decode(w, r, &body) {
		return
	}
	m, err := h.semantics.UpdateSemanticModel(r.Context(), chi.URLParam(r, "model"), domain.UpdateSemanticModelRequest{
		Description: body.Description,
		Dialect:     body.Dialect,
		Catalog:     body.Catalog,
		Schema:      body.Schema,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, semanticModelToAPI(*m))
}

// DeleteSemanticModel removes a model.
func (h *APIHandler) DeleteSemanticModel(w http.ResponseWriter, r *http.Request) {
	if err := h.semantics.DeleteSemanticModel(r.Context(), chi.URLParam(r, "model")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEntityType returns the resolved entity type summary.
func (h *APIHandler) GetEntityType(w http.ResponseWriter, r *http.Request) {
	et, err := h.semantics.EntityType(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "entity"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityTypeToAPI(et))
}

// CompileQuery compiles a query to SQL without running it.
func (h *APIHandler) CompileQuery(w http.ResponseWriter, r *http.Request) {
	var q domain.Query
	if !h.decode(w, r, &q) {
		return
	}
	stmt, err := h.semantics.Explain(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "entity"), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// PivotRows reshapes caller-fetched rows of a query into a crosstab.
func (h *APIHandler) PivotRows(w http.ResponseWriter, r *http.Request) {
	var body PivotBody
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.semantics.Pivot(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "entity"), body.Query, body.Rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunQuery compiles, executes and pivots a query.
func (h *APIHandler) RunQuery(w http.ResponseWriter, r *http.Request) {
	if h.exec == nil {
		writeError(w, http.StatusNotImplemented, "no query executor is configured")
		return
	}
	var q domain.Query
	if !h.decode(w, r, &q) {
		return
	}
	result, err := h.semantics.Run(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "entity"), q, h.exec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListMembers returns the member SQL of each level of a hierarchy, or the
// members themselves when ?execute=true.
func (h *APIHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	var ref domain.DimensionRef
	if !h.decode(w, r, &ref) {
		return
	}
	model, entity := chi.URLParam(r, "model"), chi.URLParam(r, "entity")

	if execute, _ := strconv.ParseBool(r.URL.Query().Get("execute")); !execute {
		stmts, err := h.semantics.MemberStatements(r.Context(), model, entity, ref)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stmts)
		return
	}
	if h.exec == nil {
		writeError(w, http.StatusNotImplemented, "no query executor is configured")
		return
	}
	levels, err := h.semantics.Members(r.Context(), model, entity, ref, h.exec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// AddCalculatedMeasure registers an ad hoc calculated measure.
func (h *APIHandler) AddCalculatedMeasure(w http.ResponseWriter, r *http.Request) {
	var cm domain.CalculatedMember
	if !h.decode(w, r, &cm) {
		return
	}
	if err := h.semantics.AddCalculatedMeasure(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "entity"), cm); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

// principalFromRequest names the caller for the created_by audit field.
func principalFromRequest(r *http.Request) string {
	if p := r.Header.Get("X-Principal"); p != "" {
		return p
	}
	return "anonymous"
}

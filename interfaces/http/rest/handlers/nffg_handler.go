package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	playgroundvalidator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"nffg-orchestrator/application/orchestrator"
	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/nffg"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
)

const maxGraphBodyBytes = 1 << 20

// Orchestrator is the engine surface the transport layer consumes
type Orchestrator interface {
	Put(ctx context.Context, tenant *auth.TenantContext, graph *nffg.Graph) (*ports.GraphRecord, error)
	Get(ctx context.Context, tenant *auth.TenantContext, graphID string) (*ports.GraphRecord, error)
	Delete(ctx context.Context, tenant *auth.TenantContext, graphID string) error
	Status(ctx context.Context, tenant *auth.TenantContext, graphID string) (*orchestrator.StatusResult, error)
}

// NFFGHandler maps the graph lifecycle operations onto HTTP
type NFFGHandler struct {
	engine       Orchestrator
	validate     *playgroundvalidator.Validate
	errorHandler *errors.ErrorHandler
	logger       *zap.Logger
}

// NewNFFGHandler creates the graph lifecycle handler
func NewNFFGHandler(engine Orchestrator, errorHandler *errors.ErrorHandler, logger *zap.Logger) *NFFGHandler {
	return &NFFGHandler{
		engine:       engine,
		validate:     playgroundvalidator.New(),
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// putResponse acknowledges an accepted graph
type putResponse struct {
	GraphID string      `json:"graph-id"`
	Status  nffg.Status `json:"status"`
	Message string      `json:"message"`
}

// PutGraph handles PUT /nffg
func (h *NFFGHandler) PutGraph(w http.ResponseWriter, r *http.Request) {
	tenant, err := auth.GetTenantFromContext(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var doc nffg.GraphDocument
	r.Body = http.MaxBytesReader(w, r.Body, maxGraphBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		h.errorHandler.Handle(w, r,
			errors.NewMalformedGraphError("request body is not a valid NF-FG document: "+err.Error()))
		return
	}
	if err := h.validate.Struct(&doc); err != nil {
		h.errorHandler.Handle(w, r,
			errors.NewMalformedGraphError("NF-FG document failed schema validation: "+err.Error()))
		return
	}

	graph, err := doc.ToModel()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	record, err := h.engine.Put(r.Context(), tenant, graph)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, putResponse{
		GraphID: record.GraphID,
		Status:  record.Status,
		Message: "graph " + record.GraphID + " successfully processed",
	})
}

// GetGraph handles GET /nffg/{graphID}
func (h *NFFGHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	tenant, err := auth.GetTenantFromContext(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	graphID := chi.URLParam(r, "graphID")
	record, err := h.engine.Get(r.Context(), tenant, graphID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, record.Definition)
}

// DeleteGraph handles DELETE /nffg/{graphID}
func (h *NFFGHandler) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	tenant, err := auth.GetTenantFromContext(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	graphID := chi.URLParam(r, "graphID")
	if err := h.engine.Delete(r.Context(), tenant, graphID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "graph " + graphID + " successfully deleted",
	})
}

// GetStatus handles GET /nffg/{graphID}/status
func (h *NFFGHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	tenant, err := auth.GetTenantFromContext(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	graphID := chi.URLParam(r, "graphID")
	result, err := h.engine.Status(r.Context(), tenant, graphID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *NFFGHandler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

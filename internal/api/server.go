// internal/api/server.go
// Package api exposes the pipeline services over a JSON HTTP surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/services/compressor"
	"prompt-pipeline/internal/services/orchestrator"
	"prompt-pipeline/internal/services/provisioning"
	"prompt-pipeline/internal/services/registry"
	"prompt-pipeline/internal/store"
)

// Handler routes HTTP requests to the pipeline services.
type Handler struct {
	registry     *registry.Service
	provisioning *provisioning.Service
	orchestrator *orchestrator.Service
	compressor   *compressor.Service
	generations  store.GenerationStore
	errors       *pipelineerrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(
	reg *registry.Service,
	prov *provisioning.Service,
	orch *orchestrator.Service,
	comp *compressor.Service,
	generations store.GenerationStore,
	log logger.Logger,
) *Handler {
	apiLog := log.WithFields(map[string]interface{}{"component": "api"})
	return &Handler{
		registry:     reg,
		provisioning: prov,
		orchestrator: orch,
		compressor:   comp,
		generations:  generations,
		errors:       pipelineerrors.NewErrorHandler(apiLog),
		logger:       apiLog,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Template management
	router.HandleFunc("/api/templates", h.CreateTemplate).Methods("POST")
	router.HandleFunc("/api/templates", h.ListTemplates).Methods("GET")
	router.HandleFunc("/api/templates/cleanup", h.CleanupTemplates).Methods("POST")
	router.HandleFunc("/api/templates/{id}", h.GetTemplate).Methods("GET")
	router.HandleFunc("/api/templates/{id}", h.UpdateTemplate).Methods("PUT")
	router.HandleFunc("/api/templates/{id}", h.DeleteTemplate).Methods("DELETE")

	// Provisioning
	router.HandleFunc("/api/projects/{id}/provision", h.ProvisionProject).Methods("POST")

	// Generation
	router.HandleFunc("/api/generations", h.Generate).Methods("POST")
	router.HandleFunc("/api/generations/bulk", h.BulkGenerate).Methods("POST")
	router.HandleFunc("/api/generations/{id}", h.GetGeneration).Methods("GET")

	// Compression
	router.HandleFunc("/api/compress", h.Compress).Methods("POST")
	router.HandleFunc("/api/elements/{id}/retrieval-prompt", h.RegenerateRetrievalPrompt).Methods("POST")
	router.HandleFunc("/api/elements/sweep", h.SweepMissing).Methods("POST")
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		registry.CreateInput
		CreatorID           string `json:"creatorId"`
		AutoDeriveRetrieval *bool  `json:"autoDeriveRetrieval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "create_template", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	autoDerive := true
	if req.AutoDeriveRetrieval != nil {
		autoDerive = *req.AutoDeriveRetrieval
	}

	template, err := h.registry.CreateTemplate(r.Context(), req.CreateInput, req.CreatorID, autoDerive)
	if err != nil {
		h.writeError(w, "create_template", err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tenantType := r.URL.Query().Get("tenantType")
	if tenantType == "" {
		h.writeError(w, "list_templates", pipelineerrors.NewValidationError("tenantType query parameter is required"))
		return
	}

	templates, err := h.registry.ListActive(r.Context(), tenantType)
	if err != nil {
		h.writeError(w, "list_templates", err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.registry.GetTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "get_template", err)
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		registry.UpdateInput
		EditorID string `json:"editorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "update_template", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	template, err := h.registry.UpdateTemplate(r.Context(), mux.Vars(r)["id"], req.UpdateInput, req.EditorID)
	if err != nil {
		h.writeError(w, "update_template", err)
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	result, err := h.registry.DeleteTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "delete_template", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CleanupTemplates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OlderThanDays int  `json:"olderThanDays"`
		DryRun        bool `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "cleanup_templates", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	report, err := h.registry.CleanupUnused(r.Context(), req.OlderThanDays, req.DryRun)
	if err != nil {
		h.writeError(w, "cleanup_templates", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ProvisionProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantType string `json:"tenantType"`
		BatchID    string `json:"batchId,omitempty"`
		Force      bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "provision_project", pipelineerrors.NewValidationError("invalid request body"))
		return
	}
	if req.TenantType == "" {
		h.writeError(w, "provision_project", pipelineerrors.NewValidationError("tenantType is required"))
		return
	}

	created, err := h.provisioning.ProvisionToProject(r.Context(), mux.Vars(r)["id"], req.TenantType, req.BatchID, req.Force)
	if err != nil {
		h.writeError(w, "provision_project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created":  len(created),
		"elements": created,
	})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "generate", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	generation, err := h.orchestrator.Generate(r.Context(), req)
	if err != nil {
		// A failed generation is still a persisted record; return it with
		// the error details rather than an opaque status page.
		if generation != nil {
			writeJSON(w, http.StatusUnprocessableEntity, generation)
			return
		}
		h.writeError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, generation)
}

func (h *Handler) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID              string   `json:"projectId"`
		UserID                 string   `json:"userId"`
		ElementIDs             []string `json:"elementIds,omitempty"`
		AdditionalInstructions string   `json:"additionalInstructions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "bulk_generate", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	report, err := h.orchestrator.BulkGenerate(r.Context(), req.ProjectID, req.UserID, req.ElementIDs, req.AdditionalInstructions)
	if err != nil {
		h.writeError(w, "bulk_generate", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	generation, err := h.generations.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "get_generation", err)
		return
	}
	if generation == nil {
		h.writeError(w, "get_generation", pipelineerrors.NewNotFoundError("Generation", id))
		return
	}
	writeJSON(w, http.StatusOK, generation)
}

func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GenerationPrompt string              `json:"generationPrompt"`
		Context          *compressor.Context `json:"context,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "compress", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	retrievalPrompt, err := h.compressor.Compress(r.Context(), req.GenerationPrompt, req.Context)
	if err != nil {
		h.writeError(w, "compress", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"retrievalPrompt": retrievalPrompt,
		"quality":         compressor.ScoreQuality(req.GenerationPrompt, retrievalPrompt),
	})
}

func (h *Handler) RegenerateRetrievalPrompt(w http.ResponseWriter, r *http.Request) {
	element, err := h.compressor.RegenerateForElement(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "regenerate_retrieval_prompt", err)
		return
	}
	writeJSON(w, http.StatusOK, element)
}

func (h *Handler) SweepMissing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantType string `json:"tenantType,omitempty"`
		ProjectID  string `json:"projectId,omitempty"`
		Limit      int    `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "sweep_missing", pipelineerrors.NewValidationError("invalid request body"))
		return
	}

	report, err := h.compressor.SweepMissing(r.Context(), store.SweepFilter{
		TenantType: req.TenantType,
		ProjectID:  req.ProjectID,
		Limit:      req.Limit,
	})
	if err != nil {
		h.writeError(w, "sweep_missing", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

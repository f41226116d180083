package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes the group service as REST endpoints.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service for routing.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the group endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/lists/{listID}/groups", h.listGroups)
	r.Post("/lists/{listID}/groups/generate", h.generateGroups)
	r.Get("/groups/{groupID}", h.getGroup)
	r.Patch("/groups/{groupID}", h.updateGroup)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "listID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return
	}

	var groupBy *domain.GroupBy
	if raw := r.URL.Query().Get("groupBy"); raw != "" {
		parsed, err := domain.ParseGroupBy(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		groupBy = &parsed
	}

	result, err := h.service.List(r.Context(), listID, groupBy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type generatePayload struct {
	GroupBy         string `json:"groupBy"`
	IgnoreCompleted bool   `json:"ignoreCompleted"`
}

func (h *Handler) generateGroups(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "listID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return
	}

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	groupBy, err := domain.ParseGroupBy(payload.GroupBy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Generate(r.Context(), GenerateRequest{
		ListID:          listID,
		GroupBy:         groupBy,
		IgnoreCompleted: payload.IgnoreCompleted,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid group id: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Get(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid group id: %v", err), http.StatusBadRequest)
		return
	}

	var patch domain.GroupPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.Update(r.Context(), groupID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// Package cards exposes card CRUD plus the per-group card listing that
// evaluates a group's declarative filter through the card query layer.
package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/groups"
	"github.com/rpattn/taskboard/internal/middleware"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes card endpoints.
type Handler struct {
	cards  repository.CardRepository
	groups *groups.Service
}

// NewHTTPHandler wraps the repositories for routing.
func NewHTTPHandler(cards repository.CardRepository, groupService *groups.Service) *Handler {
	return &Handler{cards: cards, groups: groupService}
}

// Routes mounts the card endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/lists/{listID}/cards", h.listCards)
	r.Post("/lists/{listID}/cards", h.createCard)
	r.Get("/groups/{groupID}/cards", h.listGroupCards)
	r.Patch("/cards/{cardID}", h.updateCard)
	r.Delete("/cards/{cardID}", h.deleteCard)
}

// CardResponse is a card with its assignee resolved for display.
type CardResponse struct {
	domain.Card
	Assignee *domain.User `json:"assignee,omitempty"`
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "listID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return
	}

	cards, err := h.cards.ListByList(r.Context(), listID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, h.resolveAssignees(r, cards))
}

// listGroupCards evaluates the group's filter against its list's cards. A
// group without a filter (the ALL bucket) returns every card.
func (h *Handler) listGroupCards(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid group id: %v", err), http.StatusBadRequest)
		return
	}

	group, err := h.groups.Get(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var where domain.FilterNode
	if group.Filter != nil {
		where = group.Filter.Where
	}

	cards, err := h.cards.ListByFilter(r.Context(), group.ListID, where)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, h.resolveAssignees(r, cards))
}

func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "listID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return
	}

	var card domain.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if card.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	card.ListID = listID

	created, err := h.cards.Create(r.Context(), card)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid card id: %v", err), http.StatusBadRequest)
		return
	}

	var patch domain.CardPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	card, err := h.cards.GetByID(r.Context(), cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updated, err := h.cards.Update(r.Context(), patch.Apply(card))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid card id: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.cards.Delete(r.Context(), cardID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveAssignees enriches cards with their assignee via the request-scoped
// batched loader. Resolution is best effort; a failed lookup leaves the
// assignee empty.
func (h *Handler) resolveAssignees(r *http.Request, cards []domain.Card) []CardResponse {
	loader := middleware.UserLoaderFromContext(r.Context())

	responses := make([]CardResponse, len(cards))
	// Queue every lookup before resolving any thunk so the loader can batch
	// them into a single query.
	thunks := make([]func() (domain.User, error), len(cards))
	for i, card := range cards {
		responses[i] = CardResponse{Card: card}
		if loader == nil || card.AssigneeID == nil {
			continue
		}
		thunks[i] = loader.LoadThunk(r.Context(), *card.AssigneeID)
	}
	for i, thunk := range thunks {
		if thunk == nil {
			continue
		}
		user, err := thunk()
		if err != nil {
			log.Printf("[cards] resolve assignee %s: %v", *cards[i].AssigneeID, err)
			continue
		}
		responses[i].Assignee = &user
	}
	return responses
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

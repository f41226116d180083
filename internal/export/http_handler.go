package export

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes board export as an HTTP endpoint.
type Handler struct {
	service *Service
	lists   repository.ListRepository
}

// NewHTTPHandler wraps the service with a GET endpoint.
func NewHTTPHandler(service *Service, lists repository.ListRepository) *Handler {
	return &Handler{service: service, lists: lists}
}

// Routes mounts the export endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/lists/{listID}/export", h.exportList)
}

func (h *Handler) exportList(w http.ResponseWriter, r *http.Request) {
	listID, err := uuid.Parse(chi.URLParam(r, "listID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return
	}

	groupBy, err := domain.ParseGroupBy(r.URL.Query().Get("groupBy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.lists.GetByID(r.Context(), listID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workbook, err := h.service.BuildWorkbook(r.Context(), listID, groupBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := workbook.Close(); err != nil {
			log.Printf("[export] close workbook: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName(list.Name)))
	if err := workbook.Write(w); err != nil {
		log.Printf("[export] write workbook: %v", err)
	}
}

// fileName derives a download name from the list name.
func fileName(listName string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', ':':
			return '-'
		}
		return r
	}, strings.TrimSpace(listName))
	if cleaned == "" {
		cleaned = "list"
	}
	return cleaned + ".xlsx"
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/events"
	"ms-marketplace/internal/inventory"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *events.Service
	Ledger  *inventory.Ledger
	Logger  *logger.Logger
}

func NewHandler(service *events.Service, ledger *inventory.Ledger, log *logger.Logger) *Handler {
	return &Handler{Service: service, Ledger: ledger, Logger: log}
}

// RegisterPublicRoutes mounts the unauthenticated read surface.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/events", h.ListEvents)
	r.Get("/api/events/search", h.SearchEvents)
	r.Get("/api/events/{eventId}", h.GetEvent)
	r.Get("/api/events/{eventId}/availability", h.GetAvailability)
}

// RegisterOrganizerRoutes mounts the routes behind the organizer role check.
func (h *Handler) RegisterOrganizerRoutes(r chi.Router) {
	r.Post("/api/events", h.CreateEvent)
	r.Put("/api/events/{eventId}", h.UpdateEvent)
	r.Delete("/api/events/{eventId}", h.CancelEvent)
	r.Get("/api/organizer/events", h.OrganizerEvents)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListEvents(r.Context())
	if err != nil {
		h.writeError(w, "Could not list events", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events", list))
}

func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	list, err := h.Service.SearchEvents(r.Context(), term)
	if err != nil {
		h.writeError(w, "Search failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events", list))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := h.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "Event not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event", event))
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	availability, err := h.Ledger.GetAvailability(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "Could not derive availability", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability", availability))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	organizerID := auth.UserID(r.Context())

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	event, err := h.Service.CreateEvent(r.Context(), organizerID, req)
	if err != nil {
		h.writeError(w, "Could not create event", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	organizerID := auth.UserID(r.Context())

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	event, err := h.Service.UpdateEvent(r.Context(), organizerID, eventID, req)
	if err != nil {
		h.writeError(w, "Could not update event", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event updated", event))
}

func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	organizerID := auth.UserID(r.Context())

	if err := h.Service.CancelEvent(r.Context(), organizerID, eventID); err != nil {
		h.writeError(w, "Could not cancel event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OrganizerEvents(w http.ResponseWriter, r *http.Request) {
	organizerID := auth.UserID(r.Context())

	list, err := h.Service.OrganizerEvents(r.Context(), organizerID)
	if err != nil {
		h.writeError(w, "Could not list organizer events", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Organizer events", list))
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := utils.StatusForError(err)
	switch {
	case errors.Is(err, events.ErrNotOrganizer):
		status = http.StatusForbidden
	case errors.Is(err, events.ErrCapacityBelow), errors.Is(err, events.ErrHasActiveTickets):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

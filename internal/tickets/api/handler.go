package api

import (
	"fmt"
	"net/http"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/tickets"
	"ms-marketplace/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *tickets.Service
	Logger  *logger.Logger
}

func NewHandler(service *tickets.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tickets", h.ListMyTickets)
	r.Get("/api/tickets/{ticketId}", h.GetTicket)
}

// RegisterOrganizerRoutes mounts the scan endpoint behind the organizer gate.
func (h *Handler) RegisterOrganizerRoutes(r chi.Router) {
	r.Post("/api/tickets/{ticketId}/scan", h.ScanTicket)
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	list, err := h.Service.GetUserTickets(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyTickets: %v", err))
		utils.WriteJSON(w, utils.StatusForError(err), utils.ErrorResponse("Could not list tickets", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets", list))
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	userID := auth.UserID(r.Context())

	ticket, err := h.Service.GetTicketWithDetails(r.Context(), ticketID)
	if err != nil {
		utils.WriteJSON(w, utils.StatusForError(err), utils.ErrorResponse("Ticket not found", err.Error()))
		return
	}
	// Owners see their own tickets; organizers go through the scan endpoint.
	if ticket.UserID != userID {
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Ticket belongs to another user", ""))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket", ticket))
}

func (h *Handler) ScanTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	h.Logger.Info("API", fmt.Sprintf("ScanTicket: ticket=%s", ticketID))

	if err := h.Service.Scan(r.Context(), ticketID); err != nil {
		utils.WriteJSON(w, utils.StatusForError(err), utils.ErrorResponse("Scan failed", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket marked as used", nil))
}

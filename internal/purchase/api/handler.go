package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/purchase"
	"ms-marketplace/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *purchase.Service
	Logger  *logger.Logger
}

func NewHandler(service *purchase.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/events/{eventId}/purchase", h.Purchase)
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.PaymentMethod == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Payment method is required", ""))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Purchase: event=%s user=%s entry=%s qty=%d",
		eventID, userID, req.EntryID, req.Quantity))

	response, err := h.Service.Purchase(r.Context(), eventID, userID, req.EntryID, req.PaymentMethod, req.Quantity)
	if err != nil {
		status := utils.StatusForError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("Purchase failed: %v", err))
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Purchase failed", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Purchase completed", response))
}

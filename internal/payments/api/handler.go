package api

import (
	"errors"
	"fmt"
	"net/http"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/payments"
	"ms-marketplace/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *payments.Service
	Logger  *logger.Logger
}

func NewHandler(service *payments.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/payments", h.ListMyPayments)
}

func (h *Handler) RegisterOrganizerRoutes(r chi.Router) {
	r.Post("/api/payments/{paymentId}/refund", h.RefundPayment)
}

func (h *Handler) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	list, err := h.Service.GetUserPayments(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyPayments: %v", err))
		utils.WriteJSON(w, utils.StatusForError(err), utils.ErrorResponse("Could not list payments", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payments", list))
}

func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	organizerID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("RefundPayment: payment=%s organizer=%s", paymentID, organizerID))

	if err := h.Service.Refund(r.Context(), organizerID, paymentID); err != nil {
		status := utils.StatusForError(err)
		if errors.Is(err, payments.ErrNotRefundable) {
			status = http.StatusConflict
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Refund failed", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment refunded", nil))
}

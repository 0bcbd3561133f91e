package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-marketplace/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusForError maps the domain error taxonomy onto HTTP statuses.
// Validation and contention conditions each get a distinguishable status;
// anything unrecognised is an opaque infrastructure failure.
func StatusForError(err error) int {
	var rateLimited *models.RateLimitedError
	var insufficient *models.InsufficientInventoryError

	switch {
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.Is(err, models.ErrAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrEntryNotFound),
		errors.Is(err, models.ErrTicketNotFound),
		errors.Is(err, models.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEventCancelled),
		errors.Is(err, models.ErrOfferExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrOfferNotOwned):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/sse"
	"ms-marketplace/internal/utils"
	"ms-marketplace/internal/waitlist"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *waitlist.Service
	Emitter *sse.QueueEventEmitter
	Logger  *logger.Logger
}

func NewHandler(service *waitlist.Service, emitter *sse.QueueEventEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Emitter: emitter, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/events/{eventId}/queue", func(r chi.Router) {
		r.Post("/", h.JoinQueue)
		r.Get("/position", h.GetQueuePosition)
		r.Get("/stream", h.StreamQueue)
		r.Delete("/{entryId}", h.ReleaseOffer)
	})
}

func (h *Handler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("JoinQueue: event=%s user=%s", eventID, userID))

	result, err := h.Service.JoinQueue(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, "Could not join waiting list", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(result.Message, result))
}

func (h *Handler) GetQueuePosition(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	position, err := h.Service.GetQueuePosition(r.Context(), eventID, userID)
	if err != nil {
		h.writeError(w, "Could not read queue position", err)
		return
	}
	if position == nil {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Not in queue", nil))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Queue position", position))
}

func (h *Handler) ReleaseOffer(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	entryID := chi.URLParam(r, "entryId")
	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("ReleaseOffer: event=%s entry=%s user=%s", eventID, entryID, userID))

	if err := h.Service.Release(r.Context(), eventID, entryID, userID); err != nil {
		h.writeError(w, "Could not release entry", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamQueue pushes queue updates for one event over SSE until the client
// disconnects.
func (h *Handler) StreamQueue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := h.Emitter.Subscribe(r.Context(), eventID)
	for update := range updates {
		data, err := json.Marshal(update)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := utils.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	}

	var rateLimited *models.RateLimitedError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimited.RetryAfter.Seconds())+1))
	}

	utils.WriteJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/ratelimit"
	"ms-marketplace/internal/sse"
	"ms-marketplace/internal/utils"
	"ms-marketplace/internal/waitlist"
	"ms-marketplace/internal/waitlist/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hand-rolled stubs: just enough of each dependency to drive the handler.
type stubDB struct {
	active  *models.WaitingListEntry
	entries map[string]*models.WaitingListEntry
}

func (s *stubDB) GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error) {
	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	return nil, models.ErrEntryNotFound
}

func (s *stubDB) GetActiveEntry(ctx context.Context, eventID, userID string) (*models.WaitingListEntry, error) {
	return s.active, nil
}

func (s *stubDB) InsertEntry(ctx context.Context, entry *models.WaitingListEntry) error { return nil }

func (s *stubDB) MarkOffered(ctx context.Context, id string, expiresAt time.Time) error { return nil }

func (s *stubDB) MarkExpired(ctx context.Context, id string) error { return nil }

func (s *stubDB) DeleteEntry(ctx context.Context, id string) error { return nil }

func (s *stubDB) OldestWaiting(ctx context.Context, eventID string, limit int) ([]models.WaitingListEntry, error) {
	return nil, nil
}

func (s *stubDB) WaitingPosition(ctx context.Context, entry *models.WaitingListEntry) (int, error) {
	return 1, nil
}

type stubEvents struct {
	event *models.Event
}

func (s *stubEvents) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if s.event == nil {
		return nil, models.ErrEventNotFound
	}
	return s.event, nil
}

type stubLedger struct {
	remaining int
}

func (s *stubLedger) GetAvailability(ctx context.Context, eventID string) (*models.Availability, error) {
	return &models.Availability{TotalTickets: 10, Remaining: s.remaining}, nil
}

type stubLimiter struct {
	decision ratelimit.Decision
}

func (s *stubLimiter) TryAcquire(ctx context.Context, identity string) (*ratelimit.Decision, error) {
	d := s.decision
	return &d, nil
}

type stubLock struct{}

func (stubLock) WithEventLock(ctx context.Context, eventID, token string, fn func() error) error {
	return fn()
}

func (stubLock) ScheduleExpiry(ctx context.Context, entryID string, ttl time.Duration) error {
	return nil
}

func (stubLock) CancelExpiry(ctx context.Context, entryID string) error { return nil }

type stubPublisher struct{}

func (stubPublisher) PublishPromotionRequested(eventID string) error        { return nil }
func (stubPublisher) PublishOfferExpired(models.WaitingListEntry) error     { return nil }

func newTestRouter(db *stubDB, events *stubEvents, ledger *stubLedger, limiter *stubLimiter) chi.Router {
	svc := waitlist.NewService(db, events, ledger, limiter, stubLock{}, stubPublisher{},
		nil, logger.NewLogger(), 15*time.Minute)

	handler := api.NewHandler(svc, sse.NewQueueEventEmitter(), logger.NewLogger())
	r := chi.NewRouter()
	// Stand-in for the auth middleware: a fixed authenticated user
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), "user1")))
		})
	})
	handler.RegisterRoutes(r)
	return r
}

func TestJoinQueueReturnsCreatedWithOffer(t *testing.T) {
	router := newTestRouter(
		&stubDB{},
		&stubEvents{event: &models.Event{ID: "event1", TotalTickets: 10}},
		&stubLedger{remaining: 5},
		&stubLimiter{decision: ratelimit.Decision{Allowed: true}},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/events/event1/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)

	data, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var result models.JoinQueueResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, models.WaitingListOffered, result.Status)
	assert.NotEmpty(t, result.EntryID)
}

func TestJoinQueueRateLimitedSetsRetryAfter(t *testing.T) {
	router := newTestRouter(
		&stubDB{},
		&stubEvents{event: &models.Event{ID: "event1", TotalTickets: 10}},
		&stubLedger{remaining: 5},
		&stubLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 90 * time.Second}},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/events/event1/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
}

func TestJoinQueueConflictWhenAlreadyQueued(t *testing.T) {
	router := newTestRouter(
		&stubDB{active: &models.WaitingListEntry{
			ID: "wl_live", EventID: "event1", UserID: "user1", Status: models.WaitingListWaiting,
		}},
		&stubEvents{event: &models.Event{ID: "event1", TotalTickets: 10}},
		&stubLedger{remaining: 5},
		&stubLimiter{decision: ratelimit.Decision{Allowed: true}},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/events/event1/queue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetQueuePosition(t *testing.T) {
	router := newTestRouter(
		&stubDB{active: &models.WaitingListEntry{
			ID: "wl_live", EventID: "event1", UserID: "user1", Status: models.WaitingListWaiting,
		}},
		&stubEvents{event: &models.Event{ID: "event1", TotalTickets: 10}},
		&stubLedger{},
		&stubLimiter{decision: ratelimit.Decision{Allowed: true}},
	)

	req := httptest.NewRequest(http.MethodGet, "/api/events/event1/queue/position", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var pos models.QueuePosition
	require.NoError(t, json.Unmarshal(data, &pos))
	assert.Equal(t, 1, pos.Position)
}

func TestReleaseEntryNotFound(t *testing.T) {
	router := newTestRouter(
		&stubDB{entries: map[string]*models.WaitingListEntry{}},
		&stubEvents{event: &models.Event{ID: "event1", TotalTickets: 10}},
		&stubLedger{},
		&stubLimiter{decision: ratelimit.Decision{Allowed: true}},
	)

	req := httptest.NewRequest(http.MethodDelete, "/api/events/event1/queue/wl_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

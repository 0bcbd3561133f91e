package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-marketplace/internal/events"
	eventsdb "ms-marketplace/internal/events/db"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

// FakePurger records which events had their queues purged.
type FakePurger struct {
	Purged []string
}

func (f *FakePurger) DeleteByEvent(ctx context.Context, eventID string) error {
	f.Purged = append(f.Purged, eventID)
	return nil
}

func setupTestService(t *testing.T) (*events.Service, *bun.DB, *FakePurger) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, m := range []interface{}{(*models.Event)(nil), (*models.Ticket)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	purger := &FakePurger{}
	svc := events.NewService(&eventsdb.DB{Bun: bunDB}, purger, logger.NewLogger())
	return svc, bunDB, purger
}

func sellTickets(t *testing.T, bunDB *bun.DB, eventID string, status models.TicketStatus, n int) {
	for i := 0; i < n; i++ {
		ticket := models.Ticket{
			ID: "tkt_" + uuid.NewString(), EventID: eventID, UserID: "buyer",
			PaymentID: "pay_1", Status: status, Amount: 20.0, PurchasedAt: time.Now(),
		}
		_, err := bunDB.NewInsert().Model(&ticket).Exec(context.Background())
		require.NoError(t, err)
	}
}

func TestCreateAndGetEvent(t *testing.T) {
	svc, bunDB, _ := setupTestService(t)
	defer bunDB.Close()

	created, err := svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Jazz Night", Location: "Cellar", EventDate: time.Now().Add(48 * time.Hour),
		Price: 25.0, TotalTickets: 40,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "org1", created.OrganizerID)

	got, err := svc.GetEvent(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Jazz Night", got.Name)
	assert.Equal(t, 40, got.TotalTickets)

	_, err = svc.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestUpdateEventCapacityFloor(t *testing.T) {
	svc, bunDB, _ := setupTestService(t)
	defer bunDB.Close()

	event, err := svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Show", EventDate: time.Now().Add(24 * time.Hour), Price: 10, TotalTickets: 10,
	})
	require.NoError(t, err)

	sellTickets(t, bunDB, event.ID, models.TicketValid, 4)

	// Shrinking below sold count is refused
	_, err = svc.UpdateEvent(context.Background(), "org1", event.ID, models.EventRequest{
		Name: "Show", EventDate: event.EventDate, Price: 10, TotalTickets: 3,
	})
	assert.ErrorIs(t, err, events.ErrCapacityBelow)

	// Shrinking to exactly the sold count is allowed
	updated, err := svc.UpdateEvent(context.Background(), "org1", event.ID, models.EventRequest{
		Name: "Show", EventDate: event.EventDate, Price: 10, TotalTickets: 4,
	})
	assert.NoError(t, err)
	assert.Equal(t, 4, updated.TotalTickets)

	// Only the owner may edit
	_, err = svc.UpdateEvent(context.Background(), "someone-else", event.ID, models.EventRequest{
		Name: "Show", EventDate: event.EventDate, Price: 10, TotalTickets: 20,
	})
	assert.ErrorIs(t, err, events.ErrNotOrganizer)
}

func TestCancelEvent(t *testing.T) {
	svc, bunDB, purger := setupTestService(t)
	defer bunDB.Close()

	event, err := svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Show", EventDate: time.Now().Add(24 * time.Hour), Price: 10, TotalTickets: 10,
	})
	require.NoError(t, err)

	// Refused while capacity-consuming tickets exist
	sellTickets(t, bunDB, event.ID, models.TicketValid, 1)
	err = svc.CancelEvent(context.Background(), "org1", event.ID)
	assert.ErrorIs(t, err, events.ErrHasActiveTickets)

	// Refunded tickets do not block cancellation
	_, err = bunDB.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketRefunded).
		Where("event_id = ?", event.ID).
		Exec(context.Background())
	require.NoError(t, err)

	err = svc.CancelEvent(context.Background(), "org1", event.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{event.ID}, purger.Purged, "Cancelling must purge the waiting list")

	got, err := svc.GetEvent(context.Background(), event.ID)
	assert.NoError(t, err)
	assert.True(t, got.IsCancelled)

	// Cancelled events vanish from the public listing
	listed, err := svc.ListEvents(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSearchEvents(t *testing.T) {
	svc, bunDB, _ := setupTestService(t)
	defer bunDB.Close()

	_, err := svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Jazz Night", Location: "Blue Note Cellar",
		EventDate: time.Now().Add(24 * time.Hour), Price: 10, TotalTickets: 10,
	})
	require.NoError(t, err)
	_, err = svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Rock Festival", Description: "Open air",
		EventDate: time.Now().Add(48 * time.Hour), Price: 10, TotalTickets: 10,
	})
	require.NoError(t, err)

	found, err := svc.SearchEvents(context.Background(), "jazz")
	assert.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "Jazz Night", found[0].Name)

	// Location matches too
	found, err = svc.SearchEvents(context.Background(), "cellar")
	assert.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = svc.SearchEvents(context.Background(), "opera")
	assert.NoError(t, err)
	assert.Empty(t, found)
}

func TestOrganizerEventsWithMetrics(t *testing.T) {
	svc, bunDB, _ := setupTestService(t)
	defer bunDB.Close()

	event, err := svc.CreateEvent(context.Background(), "org1", models.EventRequest{
		Name: "Show", EventDate: time.Now().Add(24 * time.Hour), Price: 20, TotalTickets: 10,
	})
	require.NoError(t, err)

	sellTickets(t, bunDB, event.ID, models.TicketValid, 3)
	sellTickets(t, bunDB, event.ID, models.TicketRefunded, 1)

	result, err := svc.OrganizerEvents(context.Background(), "org1")
	assert.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 3, result[0].Metrics.SoldTickets)
	assert.Equal(t, 1, result[0].Metrics.RefundedTickets)
	assert.Equal(t, 60.0, result[0].Metrics.Revenue)

	// Another organizer sees nothing
	result, err = svc.OrganizerEvents(context.Background(), "org2")
	assert.NoError(t, err)
	assert.Empty(t, result)
}

package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-marketplace/internal/config"
	"ms-marketplace/internal/models"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	cfg := config.Load()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	// Drop tables in reverse dependency order
	log.Println("Dropping tables...")
	_ = dropTables(ctx, db)

	// Create tables
	log.Println("Creating tables...")
	createTables(ctx, db)
	createIndexes(ctx, db)

	// Seed sample data
	log.Println("Seeding sample data...")
	_ = seedData(ctx, db)

	log.Println("✅ Done.")
}

func dropTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Ticket)(nil),
		(*models.Payment)(nil),
		(*models.WaitingListEntry)(nil),
		(*models.Event)(nil),
		(*models.User)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
	return nil
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.WaitingListEntry)(nil),
		(*models.Payment)(nil),
		(*models.Ticket)(nil),
	}
	for _, m := range tables {
		_, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx)
		if err != nil {
			log.Fatalf("❌ Failed to create table for %T: %v", m, err)
		}
	}
}

func createIndexes(ctx context.Context, db *bun.DB) {
	indexes := []string{
		// Availability math scans these on every admission decision.
		"CREATE INDEX IF NOT EXISTS idx_tickets_event_status ON tickets (event_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_waiting_list_event_status ON waiting_list (event_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_waiting_list_user_event ON waiting_list (user_id, event_id)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets (user_id)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_payment ON tickets (payment_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_user ON payments (user_id)",
		"CREATE INDEX IF NOT EXISTS idx_events_organizer ON events (organizer_id)",
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("❌ Failed to create index: %v", err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) error {
	now := time.Now()

	users := []models.User{
		{ID: "user_" + uuid.NewString(), Email: "alice@example.com", Name: "Alice Wonderland", Role: models.RoleOrganizer, CreatedAt: now},
		{ID: "user_" + uuid.NewString(), Email: "bob@example.com", Name: "Bob Builder", Role: models.RoleUser, CreatedAt: now},
	}
	_, _ = db.NewInsert().Model(&users).Exec(ctx)

	events := []models.Event{
		{
			ID:           "evt_" + uuid.NewString(),
			Name:         "Summer Fest 2026",
			Description:  "Annual summer music festival.",
			Location:     "Riverside Park",
			EventDate:    now.AddDate(0, 1, 0),
			Price:        49.99,
			TotalTickets: 500,
			OrganizerID:  users[0].ID,
			CreatedAt:    now,
		},
		{
			ID:           "evt_" + uuid.NewString(),
			Name:         "Jazz Night",
			Description:  "Intimate club show, very limited seating.",
			Location:     "Blue Note Cellar",
			EventDate:    now.AddDate(0, 0, 14),
			Price:        25.00,
			TotalTickets: 40,
			OrganizerID:  users[0].ID,
			CreatedAt:    now,
		},
	}
	_, _ = db.NewInsert().Model(&events).Exec(ctx)

	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

// ---------------- WAITING LIST ----------------

// GetEntryByID → fetch one waiting list entry, models.ErrEntryNotFound when absent.
func (d *DB) GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error) {
	var entry models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetActiveEntry → the single waiting-or-offered entry for (event, user),
// nil when the user has no live entry. Expired and consumed history never
// blocks a new join.
func (d *DB) GetActiveEntry(ctx context.Context, eventID, userID string) (*models.WaitingListEntry, error) {
	var entry models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Where("status IN (?)", bun.In([]models.WaitingListStatus{models.WaitingListWaiting, models.WaitingListOffered})).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// InsertEntry → insert a new waiting list entry.
func (d *DB) InsertEntry(ctx context.Context, entry *models.WaitingListEntry) error {
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

// MarkOffered → promote an entry, stamping the fresh offer deadline.
func (d *DB) MarkOffered(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.WaitingListEntry)(nil)).
		Set("status = ?", models.WaitingListOffered).
		Set("offer_expires_at = ?", expiresAt).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkExpired → terminal state for a lapsed offer. The row stays as history.
func (d *DB) MarkExpired(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.WaitingListEntry)(nil)).
		Set("status = ?", models.WaitingListExpired).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteEntry → remove a consumed entry so it stops counting as an active offer.
func (d *DB) DeleteEntry(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.WaitingListEntry)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteByEvent → purge every entry of an event, used when an event is cancelled.
func (d *DB) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// OldestWaiting → the promotion candidates: waiting entries in strict FIFO
// order by creation time.
func (d *DB) OldestWaiting(ctx context.Context, eventID string, limit int) ([]models.WaitingListEntry, error) {
	var entries []models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListWaiting).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WaitingPosition → 1-based place of a waiting entry among its event's queue.
func (d *DB) WaitingPosition(ctx context.Context, entry *models.WaitingListEntry) (int, error) {
	ahead, err := d.Bun.NewSelect().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", entry.EventID).
		Where("status = ?", models.WaitingListWaiting).
		Where("created_at < ?", entry.CreatedAt).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// ListByUser → all of a user's entries across events, newest first.
func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.WaitingListEntry, error) {
	var entries []models.WaitingListEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

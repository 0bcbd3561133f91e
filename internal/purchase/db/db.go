package db

import (
	"context"
	"database/sql"
	"fmt"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// FinalizePurchase applies the whole purchase as one transaction: the
// payment row, one ticket row per unit, and the deletion of the consumed
// waiting list entry. Readers either see none of it or all of it, so the
// derived availability can never observe a half-finished purchase.
func (d *DB) FinalizePurchase(ctx context.Context, payment *models.Payment, tickets []models.Ticket, entryID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(payment).Exec(ctx); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
			return fmt.Errorf("insert tickets: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.WaitingListEntry)(nil)).
			Where("id = ?", entryID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete consumed entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err == nil && affected == 0 {
			// The offer vanished between validation and commit. Abort so
			// the capacity check-then-write stays atomic.
			return models.ErrEntryNotFound
		}
		return nil
	})
}

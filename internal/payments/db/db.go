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
	Bun *bun.DB
}

func (d *DB) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (d *DB) GetPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := d.Bun.NewSelect().
		Model(&payments).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// RefundPayment flips a completed payment and all its tickets to refunded in
// one transaction, so the seats come back to the pool together with the
// money.
func (d *DB) RefundPayment(ctx context.Context, paymentID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Payment)(nil)).
			Set("status = ?", models.PaymentRefunded).
			Set("refunded_at = ?", time.Now()).
			Where("payment_id = ?", paymentID).
			Where("status = ?", models.PaymentCompleted).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err == nil && affected == 0 {
			return models.ErrPaymentNotFound
		}

		_, err = tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketRefunded).
			Where("payment_id = ?", paymentID).
			Exec(ctx)
		return err
	})
}

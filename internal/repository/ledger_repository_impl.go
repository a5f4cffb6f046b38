package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// LedgerRepositoryImpl implements LedgerRepository using PostgreSQL.
type LedgerRepositoryImpl struct {
	db DBTX
}

// Get returns the ledger record for an intent, or nil when none exists.
func (r *LedgerRepositoryImpl) Get(ctx context.Context, intentID string) (*model.PaymentLedgerRecord, error) {
	rec := &model.PaymentLedgerRecord{}

	err := r.db.QueryRow(ctx,
		`SELECT intent_id, pairing_id, purchase_id, status, amount_cents,
		        live_mode, attempt, created_at, updated_at
		 FROM payment_ledger WHERE intent_id = $1 FOR UPDATE`, intentID,
	).Scan(
		&rec.IntentID, &rec.PairingID, &rec.PurchaseID, &rec.Status, &rec.AmountCents,
		&rec.LiveMode, &rec.Attempt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Insert writes the first attempt for an intent.
func (r *LedgerRepositoryImpl) Insert(ctx context.Context, rec *model.PaymentLedgerRecord) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO payment_ledger (intent_id, pairing_id, purchase_id, status,
		                             amount_cents, live_mode, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		rec.IntentID, rec.PairingID, rec.PurchaseID, rec.Status,
		rec.AmountCents, rec.LiveMode, rec.Attempt,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// Update persists a bumped attempt counter and status.
func (r *LedgerRepositoryImpl) Update(ctx context.Context, rec *model.PaymentLedgerRecord) error {
	_, err := r.db.Exec(ctx,
		`UPDATE payment_ledger
		 SET status = $2, amount_cents = $3, attempt = $4, updated_at = now()
		 WHERE intent_id = $1`,
		rec.IntentID, rec.Status, rec.AmountCents, rec.Attempt,
	)

	return err
}

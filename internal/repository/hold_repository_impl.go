package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// HoldRepositoryImpl implements HoldRepository using PostgreSQL.
type HoldRepositoryImpl struct {
	db DBTX
}

// GetActive returns the active hold for a pairing, or nil when none exists.
func (r *HoldRepositoryImpl) GetActive(ctx context.Context, pairingID int64) (*model.AuthorizationHold, error) {
	h := &model.AuthorizationHold{}

	err := r.db.QueryRow(ctx,
		`SELECT id, pairing_id, status FROM authorization_holds
		 WHERE pairing_id = $1 AND status = 'ACTIVE'`, pairingID,
	).Scan(&h.ID, &h.PairingID, &h.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return h, nil
}

// EnsureActive returns the active hold, creating one if necessary.
func (r *HoldRepositoryImpl) EnsureActive(ctx context.Context, pairingID int64) (*model.AuthorizationHold, error) {
	existing, err := r.GetActive(ctx, pairingID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	h := &model.AuthorizationHold{PairingID: pairingID, Status: model.HoldActive}

	err = r.db.QueryRow(ctx,
		`INSERT INTO authorization_holds (pairing_id, status)
		 VALUES ($1, 'ACTIVE') RETURNING id`, pairingID,
	).Scan(&h.ID)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Cancel cancels the active hold. Cancelling when none is active is a no-op.
func (r *HoldRepositoryImpl) Cancel(ctx context.Context, pairingID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE authorization_holds SET status = 'CANCELLED'
		 WHERE pairing_id = $1 AND status = 'ACTIVE'`, pairingID,
	)

	return err
}

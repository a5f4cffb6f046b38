package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// RegistrationRepositoryImpl implements RegistrationRepository using PostgreSQL.
type RegistrationRepositoryImpl struct {
	db DBTX
}

const registrationSelect = `
SELECT id, pairing_id, organization_id, event_id, status, created_at
FROM padel_registrations`

func (r *RegistrationRepositoryImpl) scanOne(row pgx.Row) (*model.Registration, error) {
	reg := &model.Registration{}

	err := row.Scan(&reg.ID, &reg.PairingID, &reg.OrganizationID, &reg.EventID, &reg.Status, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRegistrationNotFound
	}

	if err != nil {
		return nil, err
	}

	return reg, nil
}

// Get retrieves a registration by ID.
func (r *RegistrationRepositoryImpl) Get(ctx context.Context, id int64) (*model.Registration, error) {
	return r.scanOne(r.db.QueryRow(ctx, registrationSelect+" WHERE id = $1", id))
}

// GetByPairing retrieves the registration projecting a pairing.
func (r *RegistrationRepositoryImpl) GetByPairing(ctx context.Context, pairingID int64) (*model.Registration, error) {
	return r.scanOne(r.db.QueryRow(ctx, registrationSelect+" WHERE pairing_id = $1", pairingID))
}

// Update persists the registration status.
func (r *RegistrationRepositoryImpl) Update(ctx context.Context, reg *model.Registration) error {
	_, err := r.db.Exec(ctx,
		"UPDATE padel_registrations SET status = $2 WHERE id = $1",
		reg.ID, reg.Status,
	)

	return err
}

// EventRepositoryImpl implements EventRepository using PostgreSQL.
type EventRepositoryImpl struct {
	db DBTX
}

// Get retrieves the event snapshot used for deadline recomputation.
func (r *EventRepositoryImpl) Get(ctx context.Context, id int64) (*model.Event, error) {
	ev := &model.Event{}

	err := r.db.QueryRow(ctx,
		`SELECT id, organization_id, title, starts_at, split_deadline_hours
		 FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.OrganizationID, &ev.Title, &ev.StartsAt, &ev.SplitDeadlineHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}

	if err != nil {
		return nil, err
	}

	return ev, nil
}

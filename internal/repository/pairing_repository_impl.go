package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// PairingRepositoryImpl implements PairingRepository using PostgreSQL.
type PairingRepositoryImpl struct {
	db DBTX
}

const pairingSelect = `
SELECT id, event_id, organization_id, payment_mode, pairing_status,
       COALESCE(guarantee_status, ''), lifecycle_status, deadline_at,
       grace_until_at, second_charge_intent_id, captain_charged_at,
       partner_swap_allowed_until_at, captain_user_id, partner_user_id
FROM padel_pairings
WHERE id = $1
FOR UPDATE`

const pairingSlotsSelect = `
SELECT id, pairing_id, slot_role, slot_status, payment_status,
       issued_ticket_id, participant_id
FROM padel_pairing_slots
WHERE pairing_id = $1
ORDER BY id`

// Get loads a pairing and its two slots, locking the pairing row so
// concurrent handlers on the same pairing serialize.
func (r *PairingRepositoryImpl) Get(ctx context.Context, id int64) (*model.Pairing, error) {
	p := &model.Pairing{}

	var guarantee string

	err := r.db.QueryRow(ctx, pairingSelect, id).Scan(
		&p.ID, &p.EventID, &p.OrganizationID, &p.PaymentMode, &p.PairingStatus,
		&guarantee, &p.LifecycleStatus, &p.DeadlineAt,
		&p.GraceUntilAt, &p.SecondChargeIntentID, &p.CaptainChargedAt,
		&p.PartnerSwapAllowedUntilAt, &p.CaptainUserID, &p.PartnerUserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPairingNotFound
	}

	if err != nil {
		return nil, err
	}

	p.GuaranteeStatus = model.GuaranteeStatus(guarantee)

	rows, err := r.db.Query(ctx, pairingSlotsSelect, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s := &model.Slot{}
		if err := rows.Scan(
			&s.ID, &s.PairingID, &s.Role, &s.SlotStatus, &s.PaymentStatus,
			&s.IssuedTicketID, &s.ParticipantID,
		); err != nil {
			return nil, err
		}

		p.Slots = append(p.Slots, s)
	}

	return p, rows.Err()
}

const pairingUpdate = `
UPDATE padel_pairings
SET payment_mode = $2, pairing_status = $3, guarantee_status = NULLIF($4, ''),
    lifecycle_status = $5, deadline_at = $6, grace_until_at = $7,
    second_charge_intent_id = $8, captain_charged_at = $9,
    partner_swap_allowed_until_at = $10, partner_user_id = $11
WHERE id = $1`

const pairingSlotUpdate = `
UPDATE padel_pairing_slots
SET slot_status = $2, payment_status = $3, issued_ticket_id = $4,
    participant_id = $5
WHERE id = $1`

// Update persists the pairing row and all slot rows.
func (r *PairingRepositoryImpl) Update(ctx context.Context, p *model.Pairing) error {
	if _, err := r.db.Exec(ctx, pairingUpdate,
		p.ID, p.PaymentMode, p.PairingStatus, string(p.GuaranteeStatus),
		p.LifecycleStatus, p.DeadlineAt, p.GraceUntilAt,
		p.SecondChargeIntentID, p.CaptainChargedAt,
		p.PartnerSwapAllowedUntilAt, p.PartnerUserID,
	); err != nil {
		return err
	}

	for _, s := range p.Slots {
		if _, err := r.db.Exec(ctx, pairingSlotUpdate,
			s.ID, s.SlotStatus, s.PaymentStatus, s.IssuedTicketID, s.ParticipantID,
		); err != nil {
			return err
		}
	}

	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository"
)

// recordEventParams describes one domain event to announce.
type recordEventParams struct {
	eventType      string
	payload        any
	organizationID int64
	actorUserID    string
	correlationID  string
	sourceType     string
	sourceID       int64
}

// recordEvent is the single choke point through which every mutating command
// announces a state change: one outbox row and one event-log row sharing a
// generated event id, written inside the caller's open transaction. Callers
// never write events directly.
func recordEvent(ctx context.Context, r *repository.Repositories, p recordEventParams) error {
	payloadJSON, err := json.Marshal(p.payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	eventID := uuid.NewString()

	if err := r.Outbox.Append(ctx, &model.OutboxEvent{
		EventID:   eventID,
		EventType: p.eventType,
		Payload:   payloadJSON,
	}); err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	if err := r.EventLog.Append(ctx, &model.EventLogEntry{
		EventID:        eventID,
		EventType:      p.eventType,
		Payload:        payloadJSON,
		OrganizationID: p.organizationID,
		ActorUserID:    p.actorUserID,
		CorrelationID:  p.correlationID,
		SourceType:     p.sourceType,
		SourceID:       p.sourceID,
	}); err != nil {
		return fmt.Errorf("failed to append event log entry: %w", err)
	}

	return nil
}

// registrationTransition moves the registration projection to a new status
// and announces it. Same-status transitions are silent no-ops; terminal
// statuses only move when fromTerminal is set (regularization).
type registrationTransition struct {
	status        model.RegistrationStatus
	reason        string
	actorUserID   string
	correlationID string
	fromTerminal  bool
}

func transitionRegistration(
	ctx context.Context,
	r *repository.Repositories,
	pairing *model.Pairing,
	t registrationTransition,
) error {
	reg, err := r.Registrations.GetByPairing(ctx, pairing.ID)
	if err != nil {
		return err
	}

	if reg.Status == t.status {
		return nil
	}

	if reg.Status.Terminal() && !t.fromTerminal {
		return model.ErrRegistrationTerminal
	}

	from := reg.Status
	reg.Status = t.status

	if err := r.Registrations.Update(ctx, reg); err != nil {
		return err
	}

	return recordEvent(ctx, r, recordEventParams{
		eventType: model.EventRegistrationStatusChanged,
		payload: model.RegistrationEventPayload{
			RegistrationID: reg.ID,
			PairingID:      pairing.ID,
			EventID:        reg.EventID,
			OrganizationID: reg.OrganizationID,
			ActorUserID:    t.actorUserID,
			From:           string(from),
			To:             string(t.status),
			Reason:         t.reason,
			CorrelationID:  t.correlationID,
		},
		organizationID: reg.OrganizationID,
		actorUserID:    t.actorUserID,
		correlationID:  t.correlationID,
		sourceType:     model.SourceTypeRegistration,
		sourceID:       reg.ID,
	})
}

// upsertLedger records one fulfillment attempt for an intent: first delivery
// inserts, replays bump the attempt counter. Explicit find-then-write, no
// storage-engine upsert.
func upsertLedger(
	ctx context.Context,
	r *repository.Repositories,
	intentID string,
	pairingID int64,
	purchaseID string,
	amount *int64,
	liveMode bool,
	status string,
) error {
	rec, err := r.Ledger.Get(ctx, intentID)
	if err != nil {
		return err
	}

	if rec == nil {
		return r.Ledger.Insert(ctx, &model.PaymentLedgerRecord{
			IntentID:    intentID,
			PairingID:   pairingID,
			PurchaseID:  purchaseID,
			Status:      status,
			AmountCents: amount,
			LiveMode:    liveMode,
			Attempt:     1,
		})
	}

	rec.Attempt++
	rec.Status = status
	rec.AmountCents = amount

	return r.Ledger.Update(ctx, rec)
}

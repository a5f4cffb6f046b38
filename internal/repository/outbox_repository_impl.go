package repository

import (
	"context"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// OutboxRepositoryImpl implements OutboxRepository using PostgreSQL.
type OutboxRepositoryImpl struct {
	db DBTX
}

// Append inserts a new outbox event inside the caller's transaction.
func (r *OutboxRepositoryImpl) Append(ctx context.Context, ev *model.OutboxEvent) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO outbox_events (event_id, event_type, payload)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		ev.EventID, ev.EventType, ev.Payload,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// ListUnpublished retrieves unpublished outbox events in insertion order.
func (r *OutboxRepositoryImpl) ListUnpublished(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, event_type, payload, created_at, published_at
		 FROM outbox_events WHERE published_at IS NULL
		 ORDER BY id LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.OutboxEvent

	for rows.Next() {
		ev := &model.OutboxEvent{}
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.EventType, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// MarkPublished marks an outbox event as published.
func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		"UPDATE outbox_events SET published_at = now() WHERE id = $1", id,
	)

	return err
}

// EventLogRepositoryImpl implements EventLogRepository using PostgreSQL.
type EventLogRepositoryImpl struct {
	db DBTX
}

// Append inserts a new audit entry inside the caller's transaction.
func (r *EventLogRepositoryImpl) Append(ctx context.Context, e *model.EventLogEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO event_log (event_id, event_type, payload, organization_id,
		                        actor_user_id, correlation_id, source_type, source_id)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		 RETURNING id, created_at`,
		e.EventID, e.EventType, e.Payload, e.OrganizationID,
		e.ActorUserID, e.CorrelationID, e.SourceType, e.SourceID,
	).Scan(&e.ID, &e.CreatedAt)
}

// RefundRepositoryImpl implements RefundRepository using PostgreSQL.
type RefundRepositoryImpl struct {
	db DBTX
}

// Enqueue inserts a refund trigger; the unique intent constraint makes
// redelivered expiry events a no-op.
func (r *RefundRepositoryImpl) Enqueue(ctx context.Context, req *model.RefundRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO refund_requests (pairing_id, slot_id, payment_intent_id, purchase_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (payment_intent_id) DO NOTHING`,
		req.PairingID, req.SlotID, req.PaymentIntentID, req.PurchaseID,
	)

	return err
}

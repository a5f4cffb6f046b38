package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// TicketRepositoryImpl implements TicketRepository using PostgreSQL.
type TicketRepositoryImpl struct {
	db DBTX
}

// GetTicketType retrieves a ticket type with its sold/total quantities.
func (r *TicketRepositoryImpl) GetTicketType(ctx context.Context, id int64) (*model.TicketType, error) {
	tt := &model.TicketType{}

	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, price_cents, currency, sold_quantity, total_quantity
		 FROM ticket_types WHERE id = $1 FOR UPDATE`, id,
	).Scan(&tt.ID, &tt.EventID, &tt.PriceCents, &tt.Currency, &tt.SoldQuantity, &tt.TotalQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTicketTypeNotFound
	}

	if err != nil {
		return nil, err
	}

	return tt, nil
}

const ticketSelect = `
SELECT id, event_id, ticket_type_id, pairing_id, payment_intent_id,
       purchase_id, price_cents, currency, owner_user_id, qr_secret, issued_at
FROM tickets`

func (r *TicketRepositoryImpl) scanOne(row pgx.Row) (*model.Ticket, error) {
	t := &model.Ticket{}

	err := row.Scan(
		&t.ID, &t.EventID, &t.TicketTypeID, &t.PairingID, &t.PaymentIntentID,
		&t.PurchaseID, &t.PriceCents, &t.Currency, &t.OwnerUserID, &t.QRSecret, &t.IssuedAt,
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Get retrieves a ticket by ID.
func (r *TicketRepositoryImpl) Get(ctx context.Context, id int64) (*model.Ticket, error) {
	t, err := r.scanOne(r.db.QueryRow(ctx, ticketSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTicketNotFound
	}

	return t, err
}

// FindByIntent returns the ticket issued for a payment intent, or nil.
func (r *TicketRepositoryImpl) FindByIntent(ctx context.Context, intentID string) (*model.Ticket, error) {
	t, err := r.scanOne(r.db.QueryRow(ctx, ticketSelect+" WHERE payment_intent_id = $1", intentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	return t, err
}

// Issue inserts a new ticket and fills in its generated ID and issue time.
func (r *TicketRepositoryImpl) Issue(ctx context.Context, t *model.Ticket) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO tickets (event_id, ticket_type_id, pairing_id, payment_intent_id,
		                      purchase_id, price_cents, currency, owner_user_id, qr_secret)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, issued_at`,
		t.EventID, t.TicketTypeID, t.PairingID, t.PaymentIntentID,
		t.PurchaseID, t.PriceCents, t.Currency, t.OwnerUserID, t.QRSecret,
	).Scan(&t.ID, &t.IssuedAt)
}

// IncrementSold bumps the sold-quantity counter.
func (r *TicketRepositoryImpl) IncrementSold(ctx context.Context, ticketTypeID int64, qty int) error {
	_, err := r.db.Exec(ctx,
		"UPDATE ticket_types SET sold_quantity = sold_quantity + $2 WHERE id = $1",
		ticketTypeID, qty,
	)

	return err
}

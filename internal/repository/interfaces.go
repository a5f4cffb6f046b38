// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// PairingRepository defines access to pairings and their slots. Get always
// loads the two slots; Update persists the pairing row and every slot row.
type PairingRepository interface {
	Get(ctx context.Context, id int64) (*model.Pairing, error)
	Update(ctx context.Context, p *model.Pairing) error
}

// EventRepository reads the tournament event snapshot a pairing belongs to.
type EventRepository interface {
	Get(ctx context.Context, id int64) (*model.Event, error)
}

// RegistrationRepository defines access to the registration projection.
type RegistrationRepository interface {
	Get(ctx context.Context, id int64) (*model.Registration, error)
	GetByPairing(ctx context.Context, pairingID int64) (*model.Registration, error)
	Update(ctx context.Context, r *model.Registration) error
}

// HoldRepository defines access to the captain's authorization hold.
// GetActive returns nil without error when no active hold exists.
type HoldRepository interface {
	GetActive(ctx context.Context, pairingID int64) (*model.AuthorizationHold, error)
	EnsureActive(ctx context.Context, pairingID int64) (*model.AuthorizationHold, error)
	Cancel(ctx context.Context, pairingID int64) error
}

// TicketRepository defines ticket issuance and inventory access.
type TicketRepository interface {
	GetTicketType(ctx context.Context, id int64) (*model.TicketType, error)
	Get(ctx context.Context, id int64) (*model.Ticket, error)
	FindByIntent(ctx context.Context, intentID string) (*model.Ticket, error)
	Issue(ctx context.Context, t *model.Ticket) error
	IncrementSold(ctx context.Context, ticketTypeID int64, qty int) error
}

// LedgerRepository defines the per-intent payment ledger. Idempotency is an
// explicit find-then-insert-or-update at the call site, not a storage-engine
// upsert. Get returns nil without error when no record exists.
type LedgerRepository interface {
	Get(ctx context.Context, intentID string) (*model.PaymentLedgerRecord, error)
	Insert(ctx context.Context, rec *model.PaymentLedgerRecord) error
	Update(ctx context.Context, rec *model.PaymentLedgerRecord) error
}

// OutboxRepository defines the append-only outbox.
type OutboxRepository interface {
	Append(ctx context.Context, ev *model.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
}

// EventLogRepository defines the append-only audit log.
type EventLogRepository interface {
	Append(ctx context.Context, e *model.EventLogEntry) error
}

// RefundRepository enqueues refund triggers. Enqueue is idempotent per
// payment intent so redelivered expiry events cannot double-refund.
type RefundRepository interface {
	Enqueue(ctx context.Context, r *model.RefundRequest) error
}

// Repositories bundles every repository bound to one transaction scope.
type Repositories struct {
	Pairings      PairingRepository
	Events        EventRepository
	Registrations RegistrationRepository
	Holds         HoldRepository
	Tickets       TicketRepository
	Ledger        LedgerRepository
	Outbox        OutboxRepository
	EventLog      EventLogRepository
	Refunds       RefundRepository
}

// UnitOfWork runs fn inside one database transaction. The repositories
// handed to fn are bound to that transaction; any error rolls back every
// mutation, including outbox and event-log appends.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}

package model

import "time"

// TicketType carries the sellable inventory for one event entry category.
type TicketType struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"eventId"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	SoldQuantity  int    `json:"soldQuantity"`
	TotalQuantity *int   `json:"totalQuantity,omitempty"`
}

// Remaining returns the unsold quantity, or -1 when unbounded.
func (t *TicketType) Remaining() int {
	if t.TotalQuantity == nil {
		return -1
	}

	return *t.TotalQuantity - t.SoldQuantity
}

// Ticket is an issued entry ticket bound to one pairing slot payment.
type Ticket struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"eventId"`
	TicketTypeID    int64     `json:"ticketTypeId"`
	PairingID       int64     `json:"pairingId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	PurchaseID      string    `json:"purchaseId"`
	PriceCents      int64     `json:"priceCents"`
	Currency        string    `json:"currency"`
	OwnerUserID     *string   `json:"ownerUserId,omitempty"`
	QRSecret        string    `json:"-"`
	IssuedAt        time.Time `json:"issuedAt"`
}

// PaymentLedgerRecord is the per-intent idempotency ledger. Replayed
// notifications bump Attempt instead of re-applying side effects.
type PaymentLedgerRecord struct {
	IntentID    string    `json:"intentId"`
	PairingID   int64     `json:"pairingId"`
	PurchaseID  string    `json:"purchaseId"`
	Status      string    `json:"status"`
	AmountCents *int64    `json:"amountCents,omitempty"`
	LiveMode    bool      `json:"liveMode"`
	Attempt     int       `json:"attempt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Ledger statuses.
const (
	LedgerStatusOK             = "OK"
	LedgerStatusRequiresAction = "REQUIRES_ACTION"
	LedgerStatusFailed         = "FAILED"
)

// RefundRequest is an enqueued refund trigger for an already-paid slot on a
// pairing that expired. Execution happens in the finance subsystem.
type RefundRequest struct {
	ID              int64     `json:"id"`
	PairingID       int64     `json:"pairingId"`
	SlotID          int64     `json:"slotId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	PurchaseID      string    `json:"purchaseId"`
	RequestedAt     time.Time `json:"requestedAt"`
}

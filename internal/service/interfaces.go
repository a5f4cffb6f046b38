// Package service provides business logic layer implementations.
package service

import (
	"context"

	"github.com/opencourt/pairing-settlement/internal/model"
)

// FulfillmentService applies normalized gateway notifications to the pairing
// aggregate. All three handlers are idempotent under at-least-once delivery.
type FulfillmentService interface {
	// HandleFullPayment applies a full-mode intent covering both slots.
	HandleFullPayment(ctx context.Context, n *model.GatewayNotification) error
	// HandleSplitPayment applies a split-mode intent covering one slot.
	HandleSplitPayment(ctx context.Context, n *model.GatewayNotification) error
	// HandleSecondCharge applies a guarantee-charge outcome. The boolean is
	// false when the gateway status is not one the core acts on; the caller
	// logs and acknowledges such notifications.
	HandleSecondCharge(ctx context.Context, n *model.GatewayNotification) (bool, error)
}

// RegistrationConsumer applies registration outbox events. Every handler is
// safe under redelivery: state is compared before anything mutates.
type RegistrationConsumer interface {
	HandleStatusChanged(ctx context.Context, p *model.RegistrationEventPayload) error
	HandleSecondChargeDue(ctx context.Context, p *model.RegistrationEventPayload) error
	HandleExpired(ctx context.Context, p *model.RegistrationEventPayload) error
}

// Actor identifies who invoked a command.
type Actor struct {
	UserID string
	Staff  bool
}

// RegularizationService re-arms a cancelled split pairing.
type RegularizationService interface {
	Regularize(ctx context.Context, pairingID int64, actor Actor) (*model.Pairing, error)
}

// OutboxPublisher drains unpublished outbox events to the message stream.
type OutboxPublisher interface {
	ProcessUnpublished(ctx context.Context, limit int) error
}

// EntryCreator is the tournament subsystem boundary: it materializes
// tournament entries once a pairing is confirmed.
type EntryCreator interface {
	EnsureEntries(ctx context.Context, pairingID int64) error
}

// GuaranteeCharger is the payment-gateway boundary for the second charge: it
// creates a new intent against the captain's authorization hold and returns
// the intent id. The outcome arrives later as a webhook. Called strictly
// outside transactions.
type GuaranteeCharger interface {
	CreateSecondChargeIntent(ctx context.Context, pairing *model.Pairing) (string, error)
}

// Package model defines domain models and data structures.
package model

import "time"

// PaymentMode determines how a pairing is paid for.
type PaymentMode string

const (
	// PaymentModeFull means a single intent covers both slots.
	PaymentModeFull PaymentMode = "FULL"
	// PaymentModeSplit means each participant pays their own slot.
	PaymentModeSplit PaymentMode = "SPLIT"
)

// PairingStatus is the coarse pairing state.
type PairingStatus string

const (
	PairingIncomplete PairingStatus = "INCOMPLETE"
	PairingComplete   PairingStatus = "COMPLETE"
	PairingCancelled  PairingStatus = "CANCELLED"
)

// GuaranteeStatus tracks the captain's second-charge guarantee. It is only
// meaningful under SPLIT mode; the zero value means no guarantee exists.
type GuaranteeStatus string

const (
	GuaranteeNone           GuaranteeStatus = ""
	GuaranteeArmed          GuaranteeStatus = "ARMED"
	GuaranteeRequiresAction GuaranteeStatus = "REQUIRES_ACTION"
	GuaranteeSucceeded      GuaranteeStatus = "SUCCEEDED"
	GuaranteeFailed         GuaranteeStatus = "FAILED"
	GuaranteeExpired        GuaranteeStatus = "EXPIRED"
)

// LifecycleStatus is the derived label exposed to callers and dashboards.
type LifecycleStatus string

const (
	LifecyclePendingOnePaid        LifecycleStatus = "PENDING_ONE_PAID"
	LifecyclePendingPartnerPayment LifecycleStatus = "PENDING_PARTNER_PAYMENT"
	LifecycleConfirmedBothPaid     LifecycleStatus = "CONFIRMED_BOTH_PAID"
	LifecycleConfirmedCaptainFull  LifecycleStatus = "CONFIRMED_CAPTAIN_FULL"
	LifecycleCancelledIncomplete   LifecycleStatus = "CANCELLED_INCOMPLETE"
)

// SlotRole identifies one of the two seats in a pairing.
type SlotRole string

const (
	SlotRoleCaptain SlotRole = "CAPTAIN"
	SlotRolePartner SlotRole = "PARTNER"
)

// SlotStatus tracks occupancy of a seat.
type SlotStatus string

const (
	SlotPending   SlotStatus = "PENDING"
	SlotFilled    SlotStatus = "FILLED"
	SlotCancelled SlotStatus = "CANCELLED"
)

// SlotPaymentStatus tracks whether a seat has been paid for.
type SlotPaymentStatus string

const (
	SlotUnpaid SlotPaymentStatus = "UNPAID"
	SlotPaid   SlotPaymentStatus = "PAID"
)

// Slot is one of exactly two seats within a pairing. Slots are created with
// the pairing and never deleted; only their status fields mutate.
type Slot struct {
	ID             int64             `json:"id"`
	PairingID      int64             `json:"pairingId"`
	Role           SlotRole          `json:"role"`
	SlotStatus     SlotStatus        `json:"slotStatus"`
	PaymentStatus  SlotPaymentStatus `json:"paymentStatus"`
	IssuedTicketID *int64            `json:"issuedTicketId,omitempty"`
	ParticipantID  *string           `json:"participantId,omitempty"`
}

// Pairing is a two-participant doubles registration unit.
type Pairing struct {
	ID                        int64           `json:"id"`
	EventID                   int64           `json:"eventId"`
	OrganizationID            int64           `json:"organizationId"`
	PaymentMode               PaymentMode     `json:"paymentMode"`
	PairingStatus             PairingStatus   `json:"pairingStatus"`
	GuaranteeStatus           GuaranteeStatus `json:"guaranteeStatus,omitempty"`
	LifecycleStatus           LifecycleStatus `json:"lifecycleStatus"`
	DeadlineAt                time.Time       `json:"deadlineAt"`
	GraceUntilAt              *time.Time      `json:"graceUntilAt,omitempty"`
	SecondChargeIntentID      *string         `json:"secondChargeIntentId,omitempty"`
	CaptainChargedAt          *time.Time      `json:"captainChargedAt,omitempty"`
	PartnerSwapAllowedUntilAt time.Time       `json:"partnerSwapAllowedUntilAt"`
	CaptainUserID             string          `json:"captainUserId"`
	PartnerUserID             *string         `json:"partnerUserId,omitempty"`
	Slots                     []*Slot         `json:"slots"`
}

// SlotByID returns the slot with the given id, or nil.
func (p *Pairing) SlotByID(id int64) *Slot {
	for _, s := range p.Slots {
		if s.ID == id {
			return s
		}
	}

	return nil
}

// SlotByRole returns the captain or partner slot, or nil.
func (p *Pairing) SlotByRole(role SlotRole) *Slot {
	for _, s := range p.Slots {
		if s.Role == role {
			return s
		}
	}

	return nil
}

// FullyPaid reports whether every slot has been paid.
func (p *Pairing) FullyPaid() bool {
	for _, s := range p.Slots {
		if s.PaymentStatus != SlotPaid {
			return false
		}
	}

	return len(p.Slots) > 0
}

// Settleable reports whether the pairing can still accept payments.
// COMPLETE and CANCELLED are terminal.
func (p *Pairing) Settleable() bool {
	return p.PairingStatus == PairingIncomplete
}

// HoldStatus tracks the captain's authorization hold.
type HoldStatus string

const (
	HoldActive    HoldStatus = "ACTIVE"
	HoldCancelled HoldStatus = "CANCELLED"
)

// AuthorizationHold is the captain's standing permission to be charged the
// partner's share after the deadline. Cancelled once the pairing reaches a
// terminal outcome.
type AuthorizationHold struct {
	ID        int64      `json:"id"`
	PairingID int64      `json:"pairingId"`
	Status    HoldStatus `json:"status"`
}

package model

import "time"

// RegistrationStatus mirrors the pairing lifecycle for subsystems that only
// read the registration projection (seeding, CRM).
type RegistrationStatus string

const (
	RegistrationPendingPayment RegistrationStatus = "PENDING_PAYMENT"
	RegistrationConfirmed      RegistrationStatus = "CONFIRMED"
	RegistrationExpired        RegistrationStatus = "EXPIRED"
	RegistrationCancelled      RegistrationStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further automatic transition.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationExpired || s == RegistrationCancelled
}

// Registration is the 1:1 projection of a pairing's payment lifecycle.
type Registration struct {
	ID             int64              `json:"id"`
	PairingID      int64              `json:"pairingId"`
	OrganizationID int64              `json:"organizationId"`
	EventID        int64              `json:"eventId"`
	Status         RegistrationStatus `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Event is the tournament event a pairing registers for. Only the fields the
// settlement core reads are modeled; the event itself is owned elsewhere.
type Event struct {
	ID                 int64     `json:"id"`
	OrganizationID     int64     `json:"organizationId"`
	Title              string    `json:"title"`
	StartsAt           time.Time `json:"startsAt"`
	SplitDeadlineHours *int      `json:"splitDeadlineHours,omitempty"`
}

package model

import "time"

// Outbox event types produced by the settlement core or its collaborators.
const (
	EventRegistrationStatusChanged  = "PADREG_STATUS_CHANGED"
	EventSecondChargeDue            = "PADREG_SPLIT_SECOND_CHARGE_DUE"
	EventRegistrationExpired        = "PADREG_EXPIRED"
	EventPartnerPaid                = "PADREG_PARTNER_PAID"
	EventSecondChargeActionRequired = "PADREG_SECOND_CHARGE_ACTION_REQUIRED"
	EventDeadlineExpired            = "PADREG_DEADLINE_EXPIRED"

	// Match audit events share the stream but are produced and consumed by
	// the match subsystem.
	EventMatchGenerated = "PADEL_MATCH_GENERATED"
	EventMatchUpdated   = "PADEL_MATCH_UPDATED"
	EventMatchDeleted   = "PADEL_MATCH_DELETED"
)

// Source types recorded on event-log entries.
const (
	SourceTypeRegistration = "PADEL_REGISTRATION"
	SourceTypePairing      = "PADEL_PAIRING"
)

// OutboxEvent is an at-least-once delivered notification of a domain state
// change, written in the same transaction as the change itself. EventID is
// the consumer-side idempotency key.
type OutboxEvent struct {
	ID          int64      `json:"id"`
	EventID     string     `json:"eventId"`
	EventType   string     `json:"eventType"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// EventLogEntry is the audit twin of an outbox event, sharing its EventID.
type EventLogEntry struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	Payload        []byte    `json:"payload"`
	OrganizationID int64     `json:"organizationId"`
	ActorUserID    string    `json:"actorUserId,omitempty"`
	CorrelationID  string    `json:"correlationId,omitempty"`
	SourceType     string    `json:"sourceType"`
	SourceID       int64     `json:"sourceId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RegistrationEventPayload is the payload carried by all PADREG_* events.
type RegistrationEventPayload struct {
	RegistrationID int64  `json:"registrationId"`
	PairingID      int64  `json:"pairingId,omitempty"`
	EventID        int64  `json:"eventId"`
	OrganizationID int64  `json:"organizationId"`
	ActorUserID    string `json:"actorUserId,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	Reason         string `json:"reason,omitempty"`
	CorrelationID  string `json:"correlationId,omitempty"`
}

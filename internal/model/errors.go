package model

import "errors"

// Precondition violations are rejected synchronously and never retried.
// Deadline violations are terminal for the request but leave state intact.
// Error messages double as the stable codes surfaced to API callers.
var (
	ErrPairingNotFound      = errors.New("PAIRING_NOT_FOUND")
	ErrPairingNotSplitMode  = errors.New("PAIRING_NOT_SPLIT_MODE")
	ErrPairingNotFullMode   = errors.New("PAIRING_NOT_FULL_MODE")
	ErrPairingCancelled     = errors.New("PAIRING_CANCELLED")
	ErrPairingNotCancelled  = errors.New("PAIRING_NOT_CANCELLED")
	ErrSlotNotFound         = errors.New("SLOT_NOT_FOUND")
	ErrNoPartnerSlot        = errors.New("NO_PARTNER_SLOT")
	ErrSplitDeadlinePassed  = errors.New("SPLIT_DEADLINE_PASSED")
	ErrRegularizeNotAllowed = errors.New("REGULARIZE_NOT_ALLOWED")
	ErrRegularizeForbidden  = errors.New("REGULARIZE_FORBIDDEN")
	ErrRegistrationNotFound = errors.New("REGISTRATION_NOT_FOUND")
	ErrRegistrationTerminal = errors.New("PADREG_TERMINAL_STATUS")
	ErrTicketTypeNotFound   = errors.New("TICKET_TYPE_NOT_FOUND")
	ErrTicketNotFound       = errors.New("TICKET_NOT_FOUND")
	ErrInsufficientStock    = errors.New("INSUFFICIENT_STOCK")
	ErrEventNotFound        = errors.New("EVENT_NOT_FOUND")

	// ErrInvalidMetadata is wrapped with the offending field when a gateway
	// notification fails boundary validation.
	ErrInvalidMetadata = errors.New("INVALID_INTENT_METADATA")
)

package model

import (
	"fmt"
	"strconv"
)

// IntentKind routes a gateway notification to the right fulfillment handler.
type IntentKind string

const (
	IntentKindUnknown      IntentKind = ""
	IntentKindFull         IntentKind = "padel_full"
	IntentKindSplit        IntentKind = "padel_split"
	IntentKindSecondCharge IntentKind = "padel_second_charge"
)

// Metadata keys consumed from gateway notifications.
const (
	MetaIntentKind    = "intentKind"
	MetaPairingID     = "pairingId"
	MetaSlotID        = "slotId"
	MetaTicketTypeID  = "ticketTypeId"
	MetaEventID       = "eventId"
	MetaParticipantID = "participantId"
	MetaPurchaseID    = "purchaseId"
	MetaCaptainUserID = "captainUserId"
	MetaCorrelationID = "correlationId"
)

// GatewayNotification is the normalized shape of a payment-gateway webhook
// event as delivered to the settlement core.
type GatewayNotification struct {
	IntentID         string            `json:"intentId"`
	Status           string            `json:"status"`
	AmountMinorUnits *int64            `json:"amountMinorUnits"`
	LiveMode         bool              `json:"liveMode"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
}

// Kind reads the intent kind from metadata.
func (n *GatewayNotification) Kind() IntentKind {
	switch IntentKind(n.Metadata[MetaIntentKind]) {
	case IntentKindFull:
		return IntentKindFull
	case IntentKindSplit:
		return IntentKindSplit
	case IntentKindSecondCharge:
		return IntentKindSecondCharge
	default:
		return IntentKindUnknown
	}
}

// FullPaymentIntent is a validated full-mode notification: one intent covers
// both slots of the pairing.
type FullPaymentIntent struct {
	IntentID      string
	PairingID     int64
	TicketTypeID  int64
	EventID       int64
	ParticipantID string
	PurchaseID    string
	AmountCents   *int64
	Currency      string
	LiveMode      bool
	CorrelationID string
}

// SplitPaymentIntent is a validated split-mode notification: one intent
// covers exactly one slot.
type SplitPaymentIntent struct {
	IntentID      string
	PairingID     int64
	SlotID        int64
	TicketTypeID  int64
	EventID       int64
	ParticipantID string
	PurchaseID    string
	AmountCents   *int64
	Currency      string
	LiveMode      bool
	CorrelationID string
}

// SecondChargeIntent is a validated guarantee-charge notification.
type SecondChargeIntent struct {
	IntentID      string
	Status        string
	PairingID     int64
	CaptainUserID string
	AmountCents   *int64
	LiveMode      bool
	CorrelationID string
}

// ParseFullPaymentIntent validates a full-mode notification before any
// transaction begins.
func ParseFullPaymentIntent(n *GatewayNotification) (*FullPaymentIntent, error) {
	if n.IntentID == "" {
		return nil, fmt.Errorf("%w: missing intentId", ErrInvalidMetadata)
	}

	pairingID, err := metaInt64(n.Metadata, MetaPairingID)
	if err != nil {
		return nil, err
	}

	ticketTypeID, err := metaInt64(n.Metadata, MetaTicketTypeID)
	if err != nil {
		return nil, err
	}

	eventID, err := metaInt64(n.Metadata, MetaEventID)
	if err != nil {
		return nil, err
	}

	purchaseID, err := metaString(n.Metadata, MetaPurchaseID)
	if err != nil {
		return nil, err
	}

	return &FullPaymentIntent{
		IntentID:      n.IntentID,
		PairingID:     pairingID,
		TicketTypeID:  ticketTypeID,
		EventID:       eventID,
		ParticipantID: n.Metadata[MetaParticipantID],
		PurchaseID:    purchaseID,
		AmountCents:   n.AmountMinorUnits,
		Currency:      n.Currency,
		LiveMode:      n.LiveMode,
		CorrelationID: n.Metadata[MetaCorrelationID],
	}, nil
}

// ParseSplitPaymentIntent validates a split-mode notification.
func ParseSplitPaymentIntent(n *GatewayNotification) (*SplitPaymentIntent, error) {
	if n.IntentID == "" {
		return nil, fmt.Errorf("%w: missing intentId", ErrInvalidMetadata)
	}

	pairingID, err := metaInt64(n.Metadata, MetaPairingID)
	if err != nil {
		return nil, err
	}

	slotID, err := metaInt64(n.Metadata, MetaSlotID)
	if err != nil {
		return nil, err
	}

	ticketTypeID, err := metaInt64(n.Metadata, MetaTicketTypeID)
	if err != nil {
		return nil, err
	}

	eventID, err := metaInt64(n.Metadata, MetaEventID)
	if err != nil {
		return nil, err
	}

	purchaseID, err := metaString(n.Metadata, MetaPurchaseID)
	if err != nil {
		return nil, err
	}

	return &SplitPaymentIntent{
		IntentID:      n.IntentID,
		PairingID:     pairingID,
		SlotID:        slotID,
		TicketTypeID:  ticketTypeID,
		EventID:       eventID,
		ParticipantID: n.Metadata[MetaParticipantID],
		PurchaseID:    purchaseID,
		AmountCents:   n.AmountMinorUnits,
		Currency:      n.Currency,
		LiveMode:      n.LiveMode,
		CorrelationID: n.Metadata[MetaCorrelationID],
	}, nil
}

// ParseSecondChargeIntent validates a guarantee-charge notification. The
// gateway-reported status is branched on by the handler, not here.
func ParseSecondChargeIntent(n *GatewayNotification) (*SecondChargeIntent, error) {
	if n.IntentID == "" {
		return nil, fmt.Errorf("%w: missing intentId", ErrInvalidMetadata)
	}

	pairingID, err := metaInt64(n.Metadata, MetaPairingID)
	if err != nil {
		return nil, err
	}

	captainUserID, err := metaString(n.Metadata, MetaCaptainUserID)
	if err != nil {
		return nil, err
	}

	return &SecondChargeIntent{
		IntentID:      n.IntentID,
		Status:        n.Status,
		PairingID:     pairingID,
		CaptainUserID: captainUserID,
		AmountCents:   n.AmountMinorUnits,
		LiveMode:      n.LiveMode,
		CorrelationID: n.Metadata[MetaCorrelationID],
	}, nil
}

func metaInt64(meta map[string]string, key string) (int64, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidMetadata, key)
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not numeric", ErrInvalidMetadata, key)
	}

	return v, nil
}

func metaString(meta map[string]string, key string) (string, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidMetadata, key)
	}

	return raw, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/policy"
	"github.com/opencourt/pairing-settlement/internal/repository"
)

// FulfillmentServiceImpl implements FulfillmentService. Each handler runs
// inside one UnitOfWork scope; re-reading aggregate state in that scope is
// what makes replays and races with the deadline consumer safe.
type FulfillmentServiceImpl struct {
	uow     repository.UnitOfWork
	entries EntryCreator
}

// NewFulfillmentServiceImpl creates a new FulfillmentService implementation.
func NewFulfillmentServiceImpl(uow repository.UnitOfWork, entries EntryCreator) FulfillmentService {
	return &FulfillmentServiceImpl{
		uow:     uow,
		entries: entries,
	}
}

// HandleFullPayment applies a full-mode intent: one payment covers both
// slots. The pairing stays INCOMPLETE because the partner still has to claim
// the seat; the registration is CONFIRMED since nothing is left to pay.
func (s *FulfillmentServiceImpl) HandleFullPayment(ctx context.Context, n *model.GatewayNotification) error {
	intent, err := model.ParseFullPaymentIntent(n)
	if err != nil {
		return err
	}

	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, intent.PairingID)
		if err != nil {
			return err
		}

		if pairing.PaymentMode != model.PaymentModeFull {
			return model.ErrPairingNotFullMode
		}

		if pairing.PairingStatus == model.PairingCancelled {
			return model.ErrPairingCancelled
		}

		captain := pairing.SlotByRole(model.SlotRoleCaptain)
		if captain == nil {
			return model.ErrSlotNotFound
		}

		partner := pairing.SlotByRole(model.SlotRolePartner)
		if partner == nil {
			return model.ErrNoPartnerSlot
		}

		// Replay: side effects already applied, only the ledger moves.
		if captain.PaymentStatus == model.SlotPaid {
			return upsertLedger(ctx, r, intent.IntentID, pairing.ID, intent.PurchaseID,
				intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
		}

		ticketType, err := r.Tickets.GetTicketType(ctx, intent.TicketTypeID)
		if err != nil {
			return err
		}

		if ticketType.EventID != intent.EventID {
			return fmt.Errorf("%w: ticketTypeId does not belong to event", model.ErrInvalidMetadata)
		}

		if remaining := ticketType.Remaining(); remaining >= 0 && remaining < 2 {
			return model.ErrInsufficientStock
		}

		for _, slot := range []*model.Slot{captain, partner} {
			ticket, err := s.issueTicket(ctx, r, intent.IntentID, intent.PurchaseID, ticketType, pairing, intent.ParticipantID, slot)
			if err != nil {
				return err
			}

			slot.PaymentStatus = model.SlotPaid
			slot.IssuedTicketID = &ticket.ID
		}

		// One increment per call, covering both issued tickets.
		if err := r.Tickets.IncrementSold(ctx, ticketType.ID, 2); err != nil {
			return err
		}

		captain.SlotStatus = model.SlotFilled
		if captain.ParticipantID == nil && intent.ParticipantID != "" {
			pid := intent.ParticipantID
			captain.ParticipantID = &pid
		}

		pairing.LifecycleStatus = model.LifecycleConfirmedCaptainFull

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		if err := transitionRegistration(ctx, r, pairing, registrationTransition{
			status:        model.RegistrationConfirmed,
			reason:        "PAYMENT_WEBHOOK",
			actorUserID:   intent.ParticipantID,
			correlationID: intent.CorrelationID,
		}); err != nil {
			return err
		}

		return upsertLedger(ctx, r, intent.IntentID, pairing.ID, intent.PurchaseID,
			intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
	})
}

// HandleSplitPayment applies a split-mode intent covering exactly one slot.
// When the last unpaid slot settles, the pairing completes, the hold is
// released and downstream entry creation fires.
func (s *FulfillmentServiceImpl) HandleSplitPayment(ctx context.Context, n *model.GatewayNotification) error {
	intent, err := model.ParseSplitPaymentIntent(n)
	if err != nil {
		return err
	}

	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, intent.PairingID)
		if err != nil {
			return err
		}

		if pairing.PaymentMode != model.PaymentModeSplit {
			return model.ErrPairingNotSplitMode
		}

		if pairing.PairingStatus == model.PairingCancelled {
			return model.ErrPairingCancelled
		}

		slot := pairing.SlotByID(intent.SlotID)
		if slot == nil {
			return model.ErrSlotNotFound
		}

		// Replay: the slot settled on a previous delivery.
		if slot.PaymentStatus == model.SlotPaid {
			return upsertLedger(ctx, r, intent.IntentID, pairing.ID, intent.PurchaseID,
				intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
		}

		ticketType, err := r.Tickets.GetTicketType(ctx, intent.TicketTypeID)
		if err != nil {
			return err
		}

		if ticketType.EventID != intent.EventID {
			return fmt.Errorf("%w: ticketTypeId does not belong to event", model.ErrInvalidMetadata)
		}

		if remaining := ticketType.Remaining(); remaining >= 0 && remaining < 1 {
			return model.ErrInsufficientStock
		}

		ticket, err := s.issueTicket(ctx, r, intent.IntentID, intent.PurchaseID, ticketType, pairing, intent.ParticipantID, slot)
		if err != nil {
			return err
		}

		if err := r.Tickets.IncrementSold(ctx, ticketType.ID, 1); err != nil {
			return err
		}

		slot.PaymentStatus = model.SlotPaid
		slot.IssuedTicketID = &ticket.ID

		// A captain covering the partner seat pays for it without occupying
		// it; the seat stays PENDING until a partner claims it.
		captainPayingPartnerSeat := slot.Role == model.SlotRolePartner && intent.ParticipantID == pairing.CaptainUserID

		if intent.ParticipantID != "" && !captainPayingPartnerSeat {
			pid := intent.ParticipantID
			slot.ParticipantID = &pid
			slot.SlotStatus = model.SlotFilled

			if slot.Role == model.SlotRolePartner {
				pairing.PartnerUserID = &pid
			}
		}

		completed := pairing.FullyPaid() && pairing.PairingStatus != model.PairingComplete
		if completed {
			pairing.PairingStatus = model.PairingComplete
			pairing.LifecycleStatus = model.LifecycleConfirmedBothPaid

			if err := r.Holds.Cancel(ctx, pairing.ID); err != nil {
				return err
			}
		} else {
			pairing.LifecycleStatus = model.LifecyclePendingPartnerPayment
		}

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		status := model.RegistrationPendingPayment
		if completed {
			status = model.RegistrationConfirmed
		}

		if err := transitionRegistration(ctx, r, pairing, registrationTransition{
			status:        status,
			reason:        "PAYMENT_WEBHOOK",
			actorUserID:   intent.ParticipantID,
			correlationID: intent.CorrelationID,
		}); err != nil {
			return err
		}

		if completed {
			reg, err := r.Registrations.GetByPairing(ctx, pairing.ID)
			if err != nil {
				return err
			}

			if err := recordEvent(ctx, r, recordEventParams{
				eventType: model.EventPartnerPaid,
				payload: model.RegistrationEventPayload{
					RegistrationID: reg.ID,
					PairingID:      pairing.ID,
					EventID:        pairing.EventID,
					OrganizationID: pairing.OrganizationID,
					ActorUserID:    intent.ParticipantID,
					CorrelationID:  intent.CorrelationID,
				},
				organizationID: pairing.OrganizationID,
				actorUserID:    intent.ParticipantID,
				correlationID:  intent.CorrelationID,
				sourceType:     model.SourceTypePairing,
				sourceID:       pairing.ID,
			}); err != nil {
				return err
			}

			if err := s.entries.EnsureEntries(ctx, pairing.ID); err != nil {
				return err
			}
		}

		return upsertLedger(ctx, r, intent.IntentID, pairing.ID, intent.PurchaseID,
			intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
	})
}

// HandleSecondCharge applies a guarantee-charge outcome reported by the
// gateway. Unknown statuses return (false, nil) and are logged upstream.
func (s *FulfillmentServiceImpl) HandleSecondCharge(ctx context.Context, n *model.GatewayNotification) (bool, error) {
	intent, err := model.ParseSecondChargeIntent(n)
	if err != nil {
		return false, err
	}

	switch intent.Status {
	case "succeeded":
		return true, s.applySecondChargeSucceeded(ctx, intent)
	case "requires_action":
		return true, s.applySecondChargeRequiresAction(ctx, intent)
	case "requires_payment_method", "canceled":
		return true, s.applySecondChargeFailed(ctx, intent)
	default:
		return false, nil
	}
}

func (s *FulfillmentServiceImpl) applySecondChargeSucceeded(ctx context.Context, intent *model.SecondChargeIntent) error {
	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, intent.PairingID)
		if err != nil {
			return err
		}

		// The guarantee only exists under split mode; a charge naming any
		// other pairing must never touch its guarantee state.
		if pairing.PaymentMode != model.PaymentModeSplit {
			return model.ErrPairingNotSplitMode
		}

		if pairing.PairingStatus == model.PairingCancelled {
			return model.ErrPairingCancelled
		}

		// Replay after a previous success.
		if pairing.PairingStatus == model.PairingComplete {
			return upsertLedger(ctx, r, intent.IntentID, pairing.ID, "",
				intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
		}

		for _, slot := range pairing.Slots {
			slot.PaymentStatus = model.SlotPaid
		}

		now := time.Now()
		pairing.PairingStatus = model.PairingComplete
		pairing.LifecycleStatus = model.LifecycleConfirmedCaptainFull
		pairing.GuaranteeStatus = model.GuaranteeSucceeded
		pairing.GraceUntilAt = nil
		pairing.CaptainChargedAt = &now
		pairing.SecondChargeIntentID = &intent.IntentID

		if err := r.Holds.Cancel(ctx, pairing.ID); err != nil {
			return err
		}

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		if err := transitionRegistration(ctx, r, pairing, registrationTransition{
			status:        model.RegistrationConfirmed,
			reason:        "SECOND_CHARGE",
			actorUserID:   intent.CaptainUserID,
			correlationID: intent.CorrelationID,
		}); err != nil {
			return err
		}

		if err := s.entries.EnsureEntries(ctx, pairing.ID); err != nil {
			return err
		}

		return upsertLedger(ctx, r, intent.IntentID, pairing.ID, "",
			intent.AmountCents, intent.LiveMode, model.LedgerStatusOK)
	})
}

func (s *FulfillmentServiceImpl) applySecondChargeRequiresAction(ctx context.Context, intent *model.SecondChargeIntent) error {
	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, intent.PairingID)
		if err != nil {
			return err
		}

		if pairing.PaymentMode != model.PaymentModeSplit {
			return model.ErrPairingNotSplitMode
		}

		// A late requires_action after the pairing settled either way
		// carries no information; swallow it.
		if !pairing.Settleable() {
			return nil
		}

		grace := policy.ComputeGraceUntil(time.Now())
		pairing.GuaranteeStatus = model.GuaranteeRequiresAction
		pairing.GraceUntilAt = &grace
		pairing.SecondChargeIntentID = &intent.IntentID

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		reg, err := r.Registrations.GetByPairing(ctx, pairing.ID)
		if err != nil {
			return err
		}

		// Notify both participants that the charge needs user action.
		if err := recordEvent(ctx, r, recordEventParams{
			eventType: model.EventSecondChargeActionRequired,
			payload: model.RegistrationEventPayload{
				RegistrationID: reg.ID,
				PairingID:      pairing.ID,
				EventID:        pairing.EventID,
				OrganizationID: pairing.OrganizationID,
				ActorUserID:    intent.CaptainUserID,
				CorrelationID:  intent.CorrelationID,
			},
			organizationID: pairing.OrganizationID,
			actorUserID:    intent.CaptainUserID,
			correlationID:  intent.CorrelationID,
			sourceType:     model.SourceTypePairing,
			sourceID:       pairing.ID,
		}); err != nil {
			return err
		}

		return upsertLedger(ctx, r, intent.IntentID, pairing.ID, "",
			intent.AmountCents, intent.LiveMode, model.LedgerStatusRequiresAction)
	})
}

func (s *FulfillmentServiceImpl) applySecondChargeFailed(ctx context.Context, intent *model.SecondChargeIntent) error {
	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, intent.PairingID)
		if err != nil {
			return err
		}

		if pairing.PaymentMode != model.PaymentModeSplit {
			return model.ErrPairingNotSplitMode
		}

		// Already terminal: a redelivered or stale failure changes nothing.
		if !pairing.Settleable() {
			return nil
		}

		pairing.GuaranteeStatus = model.GuaranteeFailed
		pairing.LifecycleStatus = model.LifecycleCancelledIncomplete
		pairing.PairingStatus = model.PairingCancelled
		pairing.SecondChargeIntentID = &intent.IntentID

		if err := r.Holds.Cancel(ctx, pairing.ID); err != nil {
			return err
		}

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		if err := transitionRegistration(ctx, r, pairing, registrationTransition{
			status:        model.RegistrationCancelled,
			reason:        "SECOND_CHARGE_FAILED",
			actorUserID:   intent.CaptainUserID,
			correlationID: intent.CorrelationID,
		}); err != nil {
			return err
		}

		reg, err := r.Registrations.GetByPairing(ctx, pairing.ID)
		if err != nil {
			return err
		}

		if err := recordEvent(ctx, r, recordEventParams{
			eventType: model.EventDeadlineExpired,
			payload: model.RegistrationEventPayload{
				RegistrationID: reg.ID,
				PairingID:      pairing.ID,
				EventID:        pairing.EventID,
				OrganizationID: pairing.OrganizationID,
				ActorUserID:    intent.CaptainUserID,
				Reason:         intent.Status,
				CorrelationID:  intent.CorrelationID,
			},
			organizationID: pairing.OrganizationID,
			actorUserID:    intent.CaptainUserID,
			correlationID:  intent.CorrelationID,
			sourceType:     model.SourceTypePairing,
			sourceID:       pairing.ID,
		}); err != nil {
			return err
		}

		return upsertLedger(ctx, r, intent.IntentID, pairing.ID, "",
			intent.AmountCents, intent.LiveMode, model.LedgerStatusFailed)
	})
}

func (s *FulfillmentServiceImpl) issueTicket(
	ctx context.Context,
	r *repository.Repositories,
	intentID, purchaseID string,
	ticketType *model.TicketType,
	pairing *model.Pairing,
	participantID string,
	slot *model.Slot,
) (*model.Ticket, error) {
	ticket := &model.Ticket{
		EventID:         pairing.EventID,
		TicketTypeID:    ticketType.ID,
		PairingID:       pairing.ID,
		PaymentIntentID: intentID,
		PurchaseID:      purchaseID,
		PriceCents:      ticketType.PriceCents,
		Currency:        ticketType.Currency,
		QRSecret:        uuid.NewString(),
	}

	if owner := ticketOwner(participantID, slot); owner != "" {
		ticket.OwnerUserID = &owner
	}

	if err := r.Tickets.Issue(ctx, ticket); err != nil {
		return nil, err
	}

	return ticket, nil
}

// ticketOwner resolves who owns an issued ticket: the slot occupant when
// known, otherwise the paying participant for their own slot.
func ticketOwner(participantID string, slot *model.Slot) string {
	if slot.ParticipantID != nil {
		return *slot.ParticipantID
	}

	return participantID
}

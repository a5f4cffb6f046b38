package service

import (
	"context"
	"log/slog"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository"
)

// RegistrationConsumerImpl implements RegistrationConsumer. It reacts to
// registration events drained from the outbox stream: projection sync,
// deadline expiry and triggering the guarantee charge.
type RegistrationConsumerImpl struct {
	uow     repository.UnitOfWork
	charger GuaranteeCharger
	logger  *slog.Logger
}

// NewRegistrationConsumerImpl creates a new RegistrationConsumer implementation.
func NewRegistrationConsumerImpl(uow repository.UnitOfWork, charger GuaranteeCharger, logger *slog.Logger) RegistrationConsumer {
	return &RegistrationConsumerImpl{
		uow:     uow,
		charger: charger,
		logger:  logger,
	}
}

// HandleStatusChanged reconciles the registration projection with the pairing
// it was derived from. Redeliveries find the projection already in sync and
// fall through without writing.
func (s *RegistrationConsumerImpl) HandleStatusChanged(ctx context.Context, p *model.RegistrationEventPayload) error {
	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, p.PairingID)
		if err != nil {
			return err
		}

		reg, err := r.Registrations.GetByPairing(ctx, pairing.ID)
		if err != nil {
			return err
		}

		expected := expectedRegistrationStatus(pairing)
		if reg.Status == expected {
			return nil
		}

		s.logger.Info("reconciling registration projection",
			slog.Int64("registration_id", reg.ID),
			slog.String("from", string(reg.Status)),
			slog.String("to", string(expected)),
		)

		reg.Status = expected

		return r.Registrations.Update(ctx, reg)
	})
}

// HandleSecondChargeDue triggers the captain's guarantee charge for a split
// pairing whose deadline passed with the partner slot unpaid. The gateway
// call happens strictly outside any transaction; the outcome arrives later as
// a webhook handled by the fulfillment service.
func (s *RegistrationConsumerImpl) HandleSecondChargeDue(ctx context.Context, p *model.RegistrationEventPayload) error {
	var target *model.Pairing

	err := s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, p.PairingID)
		if err != nil {
			return err
		}

		// Only an armed guarantee on a still-open pairing is chargeable;
		// anything else means the pairing settled or the charge already
		// started, and the redelivered event is stale.
		if !pairing.Settleable() || pairing.GuaranteeStatus != model.GuaranteeArmed {
			return nil
		}

		if pairing.SecondChargeIntentID != nil {
			return nil
		}

		target = pairing

		return nil
	})
	if err != nil || target == nil {
		return err
	}

	intentID, err := s.charger.CreateSecondChargeIntent(ctx, target)
	if err != nil {
		return err
	}

	s.logger.Info("second charge intent created",
		slog.Int64("pairing_id", target.ID),
		slog.String("intent_id", intentID),
	)

	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, p.PairingID)
		if err != nil {
			return err
		}

		// The webhook may have landed between the gateway call and here.
		if pairing.GuaranteeStatus != model.GuaranteeArmed || pairing.SecondChargeIntentID != nil {
			return nil
		}

		pairing.SecondChargeIntentID = &intentID

		return r.Pairings.Update(ctx, pairing)
	})
}

// HandleExpired cancels a pairing whose deadline passed without settlement:
// both slots are cancelled, every already-paid slot gets a refund enqueued,
// the hold is released and the registration moves to EXPIRED.
func (s *RegistrationConsumerImpl) HandleExpired(ctx context.Context, p *model.RegistrationEventPayload) error {
	return s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, p.PairingID)
		if err != nil {
			return err
		}

		// Redelivery, or the pairing settled before the event drained.
		if pairing.PairingStatus == model.PairingCancelled {
			return nil
		}

		if pairing.PairingStatus == model.PairingComplete {
			return nil
		}

		for _, slot := range pairing.Slots {
			if slot.PaymentStatus == model.SlotPaid && slot.IssuedTicketID != nil {
				ticket, err := r.Tickets.Get(ctx, *slot.IssuedTicketID)
				if err != nil {
					return err
				}

				if err := r.Refunds.Enqueue(ctx, &model.RefundRequest{
					PairingID:       pairing.ID,
					SlotID:          slot.ID,
					PaymentIntentID: ticket.PaymentIntentID,
					PurchaseID:      ticket.PurchaseID,
				}); err != nil {
					return err
				}
			}

			slot.SlotStatus = model.SlotCancelled
		}

		pairing.PairingStatus = model.PairingCancelled
		pairing.LifecycleStatus = model.LifecycleCancelledIncomplete

		if pairing.PaymentMode == model.PaymentModeSplit {
			pairing.GuaranteeStatus = model.GuaranteeExpired
		}

		if err := r.Holds.Cancel(ctx, pairing.ID); err != nil {
			return err
		}

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		return transitionRegistration(ctx, r, pairing, registrationTransition{
			status:        model.RegistrationExpired,
			reason:        "DEADLINE",
			correlationID: p.CorrelationID,
		})
	})
}

// expectedRegistrationStatus derives the projection status from the pairing
// lifecycle.
func expectedRegistrationStatus(p *model.Pairing) model.RegistrationStatus {
	switch p.LifecycleStatus {
	case model.LifecycleConfirmedBothPaid, model.LifecycleConfirmedCaptainFull:
		return model.RegistrationConfirmed
	case model.LifecycleCancelledIncomplete:
		if p.GuaranteeStatus == model.GuaranteeExpired {
			return model.RegistrationExpired
		}

		return model.RegistrationCancelled
	default:
		return model.RegistrationPendingPayment
	}
}

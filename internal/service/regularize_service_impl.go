package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/policy"
	"github.com/opencourt/pairing-settlement/internal/repository"
)

// RegularizationServiceImpl implements RegularizationService: it re-opens a
// cancelled split pairing whose guarantee charge failed or expired, giving
// the captain a fresh partner-payment window.
type RegularizationServiceImpl struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// NewRegularizationServiceImpl creates a new RegularizationService implementation.
func NewRegularizationServiceImpl(uow repository.UnitOfWork, logger *slog.Logger) RegularizationService {
	return &RegularizationServiceImpl{
		uow:    uow,
		logger: logger,
	}
}

// Regularize re-arms the pairing. Only the captain or staff may invoke it,
// only for a cancelled split pairing whose guarantee ended in FAILED or
// EXPIRED, and only while a fresh deadline can still be placed before the
// event starts. Every precondition is checked before anything mutates, so a
// rejected call leaves no trace.
func (s *RegularizationServiceImpl) Regularize(ctx context.Context, pairingID int64, actor Actor) (*model.Pairing, error) {
	var result *model.Pairing

	err := s.uow.Within(ctx, func(ctx context.Context, r *repository.Repositories) error {
		pairing, err := r.Pairings.Get(ctx, pairingID)
		if err != nil {
			return err
		}

		if actor.UserID != pairing.CaptainUserID && !actor.Staff {
			return model.ErrRegularizeForbidden
		}

		if pairing.PaymentMode != model.PaymentModeSplit {
			return model.ErrPairingNotSplitMode
		}

		if pairing.PairingStatus != model.PairingCancelled {
			return model.ErrPairingNotCancelled
		}

		if pairing.GuaranteeStatus != model.GuaranteeFailed && pairing.GuaranteeStatus != model.GuaranteeExpired {
			return model.ErrRegularizeNotAllowed
		}

		event, err := r.Events.Get(ctx, pairing.EventID)
		if err != nil {
			return err
		}

		now := time.Now()
		hours := policy.ClampDeadlineHours(event.SplitDeadlineHours)

		deadline, ok := policy.ComputeSplitDeadlineAt(now, event.StartsAt, hours)
		if !ok {
			return model.ErrSplitDeadlinePassed
		}

		partner := pairing.SlotByRole(model.SlotRolePartner)
		if partner == nil {
			return model.ErrNoPartnerSlot
		}

		// Reset the partner seat for a new occupant; any ticket issued on a
		// prior attempt stays refunded via the expiry path.
		partner.SlotStatus = model.SlotPending
		partner.PaymentStatus = model.SlotUnpaid
		partner.IssuedTicketID = nil
		partner.ParticipantID = nil
		pairing.PartnerUserID = nil

		captain := pairing.SlotByRole(model.SlotRoleCaptain)
		if captain != nil {
			if captain.PaymentStatus == model.SlotPaid {
				captain.SlotStatus = model.SlotFilled
			} else {
				captain.SlotStatus = model.SlotPending
			}
		}

		pairing.PairingStatus = model.PairingIncomplete
		pairing.GuaranteeStatus = model.GuaranteeArmed
		pairing.LifecycleStatus = model.LifecyclePendingPartnerPayment
		pairing.DeadlineAt = deadline
		pairing.PartnerSwapAllowedUntilAt = deadline
		pairing.SecondChargeIntentID = nil
		pairing.GraceUntilAt = nil
		pairing.CaptainChargedAt = nil

		if _, err := r.Holds.EnsureActive(ctx, pairing.ID); err != nil {
			return err
		}

		if err := r.Pairings.Update(ctx, pairing); err != nil {
			return err
		}

		if err := transitionRegistration(ctx, r, pairing, registrationTransition{
			status:       model.RegistrationPendingPayment,
			reason:       "REGULARIZE",
			actorUserID:  actor.UserID,
			fromTerminal: true,
		}); err != nil {
			return err
		}

		result = pairing

		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrPairingNotFound) {
			s.logger.Warn("regularize rejected",
				slog.Int64("pairing_id", pairingID),
				slog.String("error", err.Error()),
			)
		}

		return nil, err
	}

	s.logger.Info("pairing regularized",
		slog.Int64("pairing_id", pairingID),
		slog.Time("deadline_at", result.DeadlineAt),
	)

	return result, nil
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/service"
)

// expiredFixture drives a split pairing through guarantee failure so it sits
// in the state regularization applies to.
func expiredFixture(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t, model.PaymentModeSplit)
	ctx := context.Background()
	svc := f.fulfillment()

	require.NoError(t, svc.HandleSplitPayment(ctx,
		f.splitNotification("pi_captain", f.slotID(model.SlotRoleCaptain), captainUser)))

	handled, err := svc.HandleSecondCharge(ctx, f.secondChargeNotification("pi_guarantee", "requires_payment_method"))
	require.NoError(t, err)
	require.True(t, handled)

	return f
}

func (f *fixture) regularizer() service.RegularizationService {
	return service.NewRegularizationServiceImpl(f.store, discardLogger())
}

func TestRegularize_ReopensFailedPairing(t *testing.T) {
	f := expiredFixture(t)

	p, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: captainUser})
	require.NoError(t, err)

	assert.Equal(t, model.PairingIncomplete, p.PairingStatus)
	assert.Equal(t, model.GuaranteeArmed, p.GuaranteeStatus)
	assert.Equal(t, model.LifecyclePendingPartnerPayment, p.LifecycleStatus)
	assert.True(t, p.DeadlineAt.After(time.Now()))
	assert.Equal(t, p.DeadlineAt, p.PartnerSwapAllowedUntilAt)
	assert.Nil(t, p.SecondChargeIntentID)
	assert.Nil(t, p.GraceUntilAt)
	assert.Nil(t, p.PartnerUserID)

	partner := p.SlotByRole(model.SlotRolePartner)
	assert.Equal(t, model.SlotPending, partner.SlotStatus)
	assert.Equal(t, model.SlotUnpaid, partner.PaymentStatus)
	assert.Nil(t, partner.IssuedTicketID)
	assert.Nil(t, partner.ParticipantID)

	// Captain already paid; their seat stays filled.
	captain := p.SlotByRole(model.SlotRoleCaptain)
	assert.Equal(t, model.SlotFilled, captain.SlotStatus)
	assert.Equal(t, model.SlotPaid, captain.PaymentStatus)

	assert.Equal(t, model.HoldActive, f.store.Hold(f.pairing.ID).Status)
	assert.Equal(t, model.RegistrationPendingPayment, f.store.Registration(f.reg.ID).Status)
}

func TestRegularize_StaffMayActForCaptain(t *testing.T) {
	f := expiredFixture(t)

	_, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: "staff_1", Staff: true})
	require.NoError(t, err)
}

func TestRegularize_ForbiddenForOtherUsers(t *testing.T) {
	f := expiredFixture(t)

	_, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: partnerUser})
	assert.ErrorIs(t, err, model.ErrRegularizeForbidden)
}

func TestRegularize_RejectsOpenPairing(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)

	_, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: captainUser})
	assert.ErrorIs(t, err, model.ErrPairingNotCancelled)
}

func TestRegularize_RejectsSucceededGuarantee(t *testing.T) {
	f := expiredFixture(t)

	p := f.store.Pairing(f.pairing.ID)
	p.GuaranteeStatus = model.GuaranteeSucceeded
	f.store.PutPairing(p)

	_, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: captainUser})
	assert.ErrorIs(t, err, model.ErrRegularizeNotAllowed)
}

func TestRegularize_TooCloseToEventLeavesStateIntact(t *testing.T) {
	f := expiredFixture(t)

	ev := *f.event
	ev.StartsAt = time.Now().Add(30 * time.Minute)
	f.store.PutEvent(&ev)

	_, err := f.regularizer().Regularize(context.Background(), f.pairing.ID, service.Actor{UserID: captainUser})
	assert.ErrorIs(t, err, model.ErrSplitDeadlinePassed)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingCancelled, p.PairingStatus)
	assert.Equal(t, model.GuaranteeFailed, p.GuaranteeStatus)
	assert.Equal(t, model.RegistrationCancelled, f.store.Registration(f.reg.ID).Status)
}

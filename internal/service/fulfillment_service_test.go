package service_test

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository/memory"
	"github.com/opencourt/pairing-settlement/internal/service"
)

const (
	captainUser = "user_captain"
	partnerUser = "user_partner"
)

type entryRecorder struct {
	calls []int64
}

func (e *entryRecorder) EnsureEntries(_ context.Context, pairingID int64) error {
	e.calls = append(e.calls, pairingID)
	return nil
}

type chargerStub struct {
	intentID string
	calls    int
}

func (c *chargerStub) CreateSecondChargeIntent(_ context.Context, _ *model.Pairing) (string, error) {
	c.calls++
	return c.intentID, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store   *memory.Store
	entries *entryRecorder
	pairing *model.Pairing
	reg     *model.Registration
	event   *model.Event
	tt      *model.TicketType
}

func newFixture(t *testing.T, mode model.PaymentMode) *fixture {
	t.Helper()

	store := memory.New()
	now := time.Now()

	event := &model.Event{
		OrganizationID: 42,
		Title:          "Spring Open",
		StartsAt:       now.Add(240 * time.Hour),
	}
	store.PutEvent(event)

	tt := &model.TicketType{
		EventID:       event.ID,
		PriceCents:    2500,
		Currency:      "eur",
		TotalQuantity: intPtr(10),
	}
	store.PutTicketType(tt)

	captainID := captainUser
	pairing := &model.Pairing{
		EventID:                   event.ID,
		OrganizationID:            42,
		PaymentMode:               mode,
		PairingStatus:             model.PairingIncomplete,
		LifecycleStatus:           model.LifecyclePendingOnePaid,
		DeadlineAt:                now.Add(48 * time.Hour),
		PartnerSwapAllowedUntilAt: now.Add(48 * time.Hour),
		CaptainUserID:             captainUser,
		Slots: []*model.Slot{
			{Role: model.SlotRoleCaptain, SlotStatus: model.SlotFilled, PaymentStatus: model.SlotUnpaid, ParticipantID: &captainID},
			{Role: model.SlotRolePartner, SlotStatus: model.SlotPending, PaymentStatus: model.SlotUnpaid},
		},
	}

	if mode == model.PaymentModeSplit {
		pairing.GuaranteeStatus = model.GuaranteeArmed
	}

	store.PutPairing(pairing)

	// The hold only exists under split mode; it backs the guarantee charge.
	if mode == model.PaymentModeSplit {
		store.PutHold(&model.AuthorizationHold{PairingID: pairing.ID, Status: model.HoldActive})
	}

	reg := &model.Registration{
		PairingID:      pairing.ID,
		OrganizationID: 42,
		EventID:        event.ID,
		Status:         model.RegistrationPendingPayment,
	}
	store.PutRegistration(reg)

	return &fixture{
		store:   store,
		entries: &entryRecorder{},
		pairing: pairing,
		reg:     reg,
		event:   event,
		tt:      tt,
	}
}

func (f *fixture) fulfillment() service.FulfillmentService {
	return service.NewFulfillmentServiceImpl(f.store, f.entries)
}

func (f *fixture) slotID(role model.SlotRole) int64 {
	return f.store.Pairing(f.pairing.ID).SlotByRole(role).ID
}

func (f *fixture) splitNotification(intentID string, slotID int64, participant string) *model.GatewayNotification {
	return &model.GatewayNotification{
		IntentID:         intentID,
		Status:           "succeeded",
		AmountMinorUnits: int64Ptr(2500),
		Currency:         "eur",
		Metadata: map[string]string{
			model.MetaIntentKind:    string(model.IntentKindSplit),
			model.MetaPairingID:     formatID(f.pairing.ID),
			model.MetaSlotID:        formatID(slotID),
			model.MetaTicketTypeID:  formatID(f.tt.ID),
			model.MetaEventID:       formatID(f.event.ID),
			model.MetaParticipantID: participant,
			model.MetaPurchaseID:    "purch_" + intentID,
		},
	}
}

func (f *fixture) fullNotification(intentID string) *model.GatewayNotification {
	return &model.GatewayNotification{
		IntentID:         intentID,
		Status:           "succeeded",
		AmountMinorUnits: int64Ptr(5000),
		Currency:         "eur",
		Metadata: map[string]string{
			model.MetaIntentKind:    string(model.IntentKindFull),
			model.MetaPairingID:     formatID(f.pairing.ID),
			model.MetaTicketTypeID:  formatID(f.tt.ID),
			model.MetaEventID:       formatID(f.event.ID),
			model.MetaParticipantID: captainUser,
			model.MetaPurchaseID:    "purch_" + intentID,
		},
	}
}

func (f *fixture) secondChargeNotification(intentID, status string) *model.GatewayNotification {
	return &model.GatewayNotification{
		IntentID:         intentID,
		Status:           status,
		AmountMinorUnits: int64Ptr(2500),
		Metadata: map[string]string{
			model.MetaIntentKind:    string(model.IntentKindSecondCharge),
			model.MetaPairingID:     formatID(f.pairing.ID),
			model.MetaCaptainUserID: captainUser,
		},
	}
}

func (f *fixture) countEvents(eventType string) int {
	n := 0

	for _, ev := range f.store.OutboxEvents() {
		if ev.EventType == eventType {
			n++
		}
	}

	return n
}

func TestHandleSplitPayment_BothSlotsCompletePairing(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	svc := f.fulfillment()
	ctx := context.Background()

	// Partner pays first.
	err := svc.HandleSplitPayment(ctx, f.splitNotification("pi_partner", f.slotID(model.SlotRolePartner), partnerUser))
	require.NoError(t, err)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingIncomplete, p.PairingStatus)
	assert.Equal(t, model.LifecyclePendingPartnerPayment, p.LifecycleStatus)
	require.NotNil(t, p.PartnerUserID)
	assert.Equal(t, partnerUser, *p.PartnerUserID)
	assert.Equal(t, model.RegistrationPendingPayment, f.store.Registration(f.reg.ID).Status)
	assert.Empty(t, f.entries.calls)

	// Captain settles the second slot.
	err = svc.HandleSplitPayment(ctx, f.splitNotification("pi_captain", f.slotID(model.SlotRoleCaptain), captainUser))
	require.NoError(t, err)

	p = f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingComplete, p.PairingStatus)
	assert.Equal(t, model.LifecycleConfirmedBothPaid, p.LifecycleStatus)
	assert.Equal(t, model.RegistrationConfirmed, f.store.Registration(f.reg.ID).Status)
	assert.Equal(t, model.HoldCancelled, f.store.Hold(f.pairing.ID).Status)
	assert.Equal(t, []int64{f.pairing.ID}, f.entries.calls)

	assert.Len(t, f.store.Tickets(), 2)
	assert.Equal(t, 2, f.store.TicketType(f.tt.ID).SoldQuantity)
	assert.Equal(t, 1, f.countEvents(model.EventPartnerPaid))
	assert.Equal(t, 1, f.countEvents(model.EventRegistrationStatusChanged))
}

func TestHandleSplitPayment_ReplayBumpsAttemptOnly(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	svc := f.fulfillment()
	ctx := context.Background()
	n := f.splitNotification("pi_replay", f.slotID(model.SlotRolePartner), partnerUser)

	require.NoError(t, svc.HandleSplitPayment(ctx, n))
	require.NoError(t, svc.HandleSplitPayment(ctx, n))

	assert.Len(t, f.store.Tickets(), 1)
	assert.Equal(t, 1, f.store.TicketType(f.tt.ID).SoldQuantity)

	rec := f.store.Ledger("pi_replay")
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.Attempt)
	assert.Equal(t, model.LedgerStatusOK, rec.Status)
}

func TestHandleSplitPayment_RejectsWrongMode(t *testing.T) {
	f := newFixture(t, model.PaymentModeFull)
	svc := f.fulfillment()

	err := svc.HandleSplitPayment(context.Background(), f.splitNotification("pi_x", f.slotID(model.SlotRolePartner), partnerUser))
	assert.ErrorIs(t, err, model.ErrPairingNotSplitMode)
	assert.Empty(t, f.store.Tickets())
}

func TestHandleSplitPayment_RejectsCancelledPairing(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	p := f.store.Pairing(f.pairing.ID)
	p.PairingStatus = model.PairingCancelled
	f.store.PutPairing(p)

	err := f.fulfillment().HandleSplitPayment(context.Background(),
		f.splitNotification("pi_x", f.slotID(model.SlotRolePartner), partnerUser))
	assert.ErrorIs(t, err, model.ErrPairingCancelled)
}

func TestHandleFullPayment_SettlesBothSlots(t *testing.T) {
	f := newFixture(t, model.PaymentModeFull)
	svc := f.fulfillment()

	require.NoError(t, svc.HandleFullPayment(context.Background(), f.fullNotification("pi_full")))

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingIncomplete, p.PairingStatus)
	assert.Equal(t, model.LifecycleConfirmedCaptainFull, p.LifecycleStatus)

	captain := p.SlotByRole(model.SlotRoleCaptain)
	assert.Equal(t, model.SlotPaid, captain.PaymentStatus)
	assert.Equal(t, model.SlotFilled, captain.SlotStatus)

	// Partner seat is paid for but still open to claim.
	partner := p.SlotByRole(model.SlotRolePartner)
	assert.Equal(t, model.SlotPaid, partner.PaymentStatus)
	assert.Equal(t, model.SlotPending, partner.SlotStatus)
	assert.NotNil(t, partner.IssuedTicketID)

	assert.Equal(t, model.RegistrationConfirmed, f.store.Registration(f.reg.ID).Status)
	assert.Len(t, f.store.Tickets(), 2)
	assert.Equal(t, 2, f.store.TicketType(f.tt.ID).SoldQuantity)
}

func TestHandleFullPayment_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, model.PaymentModeFull)
	svc := f.fulfillment()
	n := f.fullNotification("pi_full")

	require.NoError(t, svc.HandleFullPayment(context.Background(), n))
	require.NoError(t, svc.HandleFullPayment(context.Background(), n))

	assert.Len(t, f.store.Tickets(), 2)
	assert.Equal(t, 2, f.store.TicketType(f.tt.ID).SoldQuantity)
	assert.Equal(t, 2, f.store.Ledger("pi_full").Attempt)
}

func TestHandleFullPayment_InsufficientStock(t *testing.T) {
	f := newFixture(t, model.PaymentModeFull)
	tt := f.store.TicketType(f.tt.ID)
	tt.SoldQuantity = 9
	f.store.PutTicketType(tt)

	err := f.fulfillment().HandleFullPayment(context.Background(), f.fullNotification("pi_full"))
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.Empty(t, f.store.Tickets())
	assert.Equal(t, model.RegistrationPendingPayment, f.store.Registration(f.reg.ID).Status)
}

func TestHandleSecondCharge_Succeeded(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	svc := f.fulfillment()
	ctx := context.Background()

	// Captain already settled their own slot before the deadline.
	require.NoError(t, svc.HandleSplitPayment(ctx, f.splitNotification("pi_captain", f.slotID(model.SlotRoleCaptain), captainUser)))
	f.entries.calls = nil

	handled, err := svc.HandleSecondCharge(ctx, f.secondChargeNotification("pi_guarantee", "succeeded"))
	require.NoError(t, err)
	assert.True(t, handled)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingComplete, p.PairingStatus)
	assert.Equal(t, model.GuaranteeSucceeded, p.GuaranteeStatus)
	assert.Equal(t, model.LifecycleConfirmedCaptainFull, p.LifecycleStatus)
	assert.Nil(t, p.GraceUntilAt)
	assert.NotNil(t, p.CaptainChargedAt)
	require.NotNil(t, p.SecondChargeIntentID)
	assert.Equal(t, "pi_guarantee", *p.SecondChargeIntentID)

	for _, slot := range p.Slots {
		assert.Equal(t, model.SlotPaid, slot.PaymentStatus)
	}

	assert.Equal(t, model.HoldCancelled, f.store.Hold(f.pairing.ID).Status)
	assert.Equal(t, model.RegistrationConfirmed, f.store.Registration(f.reg.ID).Status)
	assert.Equal(t, []int64{f.pairing.ID}, f.entries.calls)
}

func TestHandleSecondCharge_RequiresAction(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)

	handled, err := f.fulfillment().HandleSecondCharge(context.Background(),
		f.secondChargeNotification("pi_guarantee", "requires_action"))
	require.NoError(t, err)
	assert.True(t, handled)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.GuaranteeRequiresAction, p.GuaranteeStatus)
	assert.Equal(t, model.PairingIncomplete, p.PairingStatus)
	require.NotNil(t, p.GraceUntilAt)
	assert.True(t, p.GraceUntilAt.After(time.Now()))

	assert.Equal(t, 1, f.countEvents(model.EventSecondChargeActionRequired))
	assert.Equal(t, model.LedgerStatusRequiresAction, f.store.Ledger("pi_guarantee").Status)
}

func TestHandleSecondCharge_FailureCancelsPairing(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)

	handled, err := f.fulfillment().HandleSecondCharge(context.Background(),
		f.secondChargeNotification("pi_guarantee", "requires_payment_method"))
	require.NoError(t, err)
	assert.True(t, handled)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingCancelled, p.PairingStatus)
	assert.Equal(t, model.GuaranteeFailed, p.GuaranteeStatus)
	assert.Equal(t, model.LifecycleCancelledIncomplete, p.LifecycleStatus)
	assert.Equal(t, model.HoldCancelled, f.store.Hold(f.pairing.ID).Status)
	assert.Equal(t, model.RegistrationCancelled, f.store.Registration(f.reg.ID).Status)
	assert.Equal(t, 1, f.countEvents(model.EventDeadlineExpired))
	assert.Equal(t, model.LedgerStatusFailed, f.store.Ledger("pi_guarantee").Status)
}

func TestHandleSecondCharge_StaleFailureAfterSettlementIsNoOp(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	svc := f.fulfillment()
	ctx := context.Background()

	require.NoError(t, svc.HandleSplitPayment(ctx, f.splitNotification("pi_captain", f.slotID(model.SlotRoleCaptain), captainUser)))
	require.NoError(t, svc.HandleSplitPayment(ctx, f.splitNotification("pi_partner", f.slotID(model.SlotRolePartner), partnerUser)))

	handled, err := svc.HandleSecondCharge(ctx, f.secondChargeNotification("pi_guarantee", "canceled"))
	require.NoError(t, err)
	assert.True(t, handled)

	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingComplete, p.PairingStatus)
	assert.Equal(t, model.RegistrationConfirmed, f.store.Registration(f.reg.ID).Status)
}

func TestHandleSplitPayment_CaptainPayingPartnerSeatLeavesItUnclaimed(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)
	svc := f.fulfillment()

	err := svc.HandleSplitPayment(context.Background(),
		f.splitNotification("pi_cover", f.slotID(model.SlotRolePartner), captainUser))
	require.NoError(t, err)

	p := f.store.Pairing(f.pairing.ID)
	partner := p.SlotByRole(model.SlotRolePartner)
	assert.Equal(t, model.SlotPaid, partner.PaymentStatus)
	assert.Equal(t, model.SlotPending, partner.SlotStatus)
	assert.Nil(t, partner.ParticipantID)
	assert.Nil(t, p.PartnerUserID)
}

func TestHandleSecondCharge_RejectsFullModePairing(t *testing.T) {
	f := newFixture(t, model.PaymentModeFull)
	svc := f.fulfillment()
	ctx := context.Background()

	require.NoError(t, svc.HandleFullPayment(ctx, f.fullNotification("pi_full")))

	for _, status := range []string{"succeeded", "requires_action", "requires_payment_method"} {
		t.Run(status, func(t *testing.T) {
			_, err := svc.HandleSecondCharge(ctx, f.secondChargeNotification("pi_guarantee", status))
			assert.ErrorIs(t, err, model.ErrPairingNotSplitMode)
		})
	}

	// No guarantee state appears on a full-mode pairing and its settled
	// registration stays confirmed.
	p := f.store.Pairing(f.pairing.ID)
	assert.Equal(t, model.PairingIncomplete, p.PairingStatus)
	assert.Equal(t, model.GuaranteeNone, p.GuaranteeStatus)
	assert.Equal(t, model.RegistrationConfirmed, f.store.Registration(f.reg.ID).Status)
}

func TestHandleSecondCharge_UnknownStatusIsNotHandled(t *testing.T) {
	f := newFixture(t, model.PaymentModeSplit)

	handled, err := f.fulfillment().HandleSecondCharge(context.Background(),
		f.secondChargeNotification("pi_guarantee", "processing"))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, f.store.Ledger("pi_guarantee"))
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencourt/pairing-settlement/internal/model"
)

func splitMeta() map[string]string {
	return map[string]string{
		model.MetaIntentKind:    string(model.IntentKindSplit),
		model.MetaPairingID:     "7",
		model.MetaSlotID:        "12",
		model.MetaTicketTypeID:  "3",
		model.MetaEventID:       "5",
		model.MetaParticipantID: "user_9",
		model.MetaPurchaseID:    "purch_1",
		model.MetaCorrelationID: "corr_1",
	}
}

func TestGatewayNotificationKind(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want model.IntentKind
	}{
		{"full", map[string]string{model.MetaIntentKind: "padel_full"}, model.IntentKindFull},
		{"split", map[string]string{model.MetaIntentKind: "padel_split"}, model.IntentKindSplit},
		{"second charge", map[string]string{model.MetaIntentKind: "padel_second_charge"}, model.IntentKindSecondCharge},
		{"missing", map[string]string{}, model.IntentKindUnknown},
		{"foreign", map[string]string{model.MetaIntentKind: "shop_order"}, model.IntentKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &model.GatewayNotification{Metadata: tt.meta}
			assert.Equal(t, tt.want, n.Kind())
		})
	}
}

func TestParseSplitPaymentIntent(t *testing.T) {
	amount := int64(2500)
	n := &model.GatewayNotification{
		IntentID:         "pi_1",
		Status:           "succeeded",
		AmountMinorUnits: &amount,
		Currency:         "eur",
		LiveMode:         true,
		Metadata:         splitMeta(),
	}

	intent, err := model.ParseSplitPaymentIntent(n)
	require.NoError(t, err)

	assert.Equal(t, "pi_1", intent.IntentID)
	assert.Equal(t, int64(7), intent.PairingID)
	assert.Equal(t, int64(12), intent.SlotID)
	assert.Equal(t, int64(3), intent.TicketTypeID)
	assert.Equal(t, int64(5), intent.EventID)
	assert.Equal(t, "user_9", intent.ParticipantID)
	assert.Equal(t, "purch_1", intent.PurchaseID)
	assert.Equal(t, "corr_1", intent.CorrelationID)
	assert.True(t, intent.LiveMode)
	require.NotNil(t, intent.AmountCents)
	assert.Equal(t, int64(2500), *intent.AmountCents)
}

func TestParseSplitPaymentIntent_MissingFields(t *testing.T) {
	for _, key := range []string{
		model.MetaPairingID,
		model.MetaSlotID,
		model.MetaTicketTypeID,
		model.MetaEventID,
		model.MetaPurchaseID,
	} {
		t.Run(key, func(t *testing.T) {
			meta := splitMeta()
			delete(meta, key)

			_, err := model.ParseSplitPaymentIntent(&model.GatewayNotification{IntentID: "pi_1", Metadata: meta})
			assert.ErrorIs(t, err, model.ErrInvalidMetadata)
		})
	}
}

func TestParseSplitPaymentIntent_NonNumericID(t *testing.T) {
	meta := splitMeta()
	meta[model.MetaPairingID] = "abc"

	_, err := model.ParseSplitPaymentIntent(&model.GatewayNotification{IntentID: "pi_1", Metadata: meta})
	assert.ErrorIs(t, err, model.ErrInvalidMetadata)
}

func TestParseFullPaymentIntent_MissingIntentID(t *testing.T) {
	_, err := model.ParseFullPaymentIntent(&model.GatewayNotification{Metadata: splitMeta()})
	assert.ErrorIs(t, err, model.ErrInvalidMetadata)
}

func TestParseSecondChargeIntent(t *testing.T) {
	n := &model.GatewayNotification{
		IntentID: "pi_2",
		Status:   "requires_action",
		Metadata: map[string]string{
			model.MetaIntentKind:    string(model.IntentKindSecondCharge),
			model.MetaPairingID:     "7",
			model.MetaCaptainUserID: "user_cap",
		},
	}

	intent, err := model.ParseSecondChargeIntent(n)
	require.NoError(t, err)

	assert.Equal(t, "requires_action", intent.Status)
	assert.Equal(t, int64(7), intent.PairingID)
	assert.Equal(t, "user_cap", intent.CaptainUserID)
}

func TestParseSecondChargeIntent_MissingCaptain(t *testing.T) {
	n := &model.GatewayNotification{
		IntentID: "pi_2",
		Metadata: map[string]string{model.MetaPairingID: "7"},
	}

	_, err := model.ParseSecondChargeIntent(n)
	assert.ErrorIs(t, err, model.ErrInvalidMetadata)
}

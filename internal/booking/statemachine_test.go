package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/ledger"
)

func draftBooking(total, percent string) *domain.Booking {
	return &domain.Booking{
		ID:                     "bk-1",
		Status:                 domain.StatusDraft,
		Currency:               "EUR",
		AmountTotal:            decimal.RequireFromString(total),
		PaymentPercentRequired: decimal.RequireFromString(percent),
	}
}

func aggWithNetPaid(s string) ledger.Aggregate {
	d := decimal.RequireFromString(s)
	return ledger.Aggregate{PaidTotal: d, NetPaid: d}
}

func TestApply_ConfirmationThreshold(t *testing.T) {
	now := time.Now()

	b := draftBooking("1000", "30")
	out := Apply(b, aggWithNetPaid("299"), "pay-1", now)
	assert.Equal(t, domain.StatusDraft, b.Status)
	assert.Empty(t, out.Events)
	assert.True(t, b.AmountPaid.Equal(decimal.RequireFromString("299")))

	out = Apply(b, aggWithNetPaid("300"), "pay-2", now)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	require.NotNil(t, b.ConfirmedAt)
	require.Len(t, out.Events, 1)
	ev, ok := out.Events[0].(domain.BookingConfirmed)
	require.True(t, ok)
	assert.Equal(t, "bk-1", ev.BookingID)
	assert.Equal(t, "pay-2", ev.TriggerPaymentID)
}

func TestApply_ConfirmationFiresOnlyOnce(t *testing.T) {
	now := time.Now()
	b := draftBooking("1000", "30")

	out := Apply(b, aggWithNetPaid("400"), "pay-1", now)
	require.Len(t, out.Events, 1)
	_, ok := out.Events[0].(domain.BookingConfirmed)
	require.True(t, ok)

	// the next settled payment applies but does not re-confirm
	out = Apply(b, aggWithNetPaid("600"), "pay-2", now)
	require.Len(t, out.Events, 1)
	applied, ok := out.Events[0].(domain.PaymentApplied)
	require.True(t, ok)
	assert.Equal(t, "pay-2", applied.PaymentID)
	assert.True(t, applied.NewAmountPaid.Equal(decimal.RequireFromString("600")))
}

func TestApply_ZeroPercentMeansAnyPaymentConfirms(t *testing.T) {
	b := draftBooking("1000", "0")

	out := Apply(b, aggWithNetPaid("0.01"), "pay-1", time.Now())
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	require.Len(t, out.Events, 1)
}

func TestApply_ZeroPaidStaysDraft(t *testing.T) {
	b := draftBooking("1000", "0")

	out := Apply(b, aggWithNetPaid("0"), "", time.Now())
	assert.Equal(t, domain.StatusDraft, b.Status)
	assert.Empty(t, out.Events)
}

func TestApply_OutOfOrderSettlementStillConfirms(t *testing.T) {
	now := time.Now()

	// balance payment (event B) lands before the down payment (event A);
	// each pass recomputes from ledger truth, so arrival order is irrelevant
	b := draftBooking("1000", "30")
	out := Apply(b, aggWithNetPaid("200"), "balance-evt", now)
	assert.Equal(t, domain.StatusDraft, b.Status)
	assert.Empty(t, out.Events)

	out = Apply(b, aggWithNetPaid("300"), "down-evt", now)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	require.Len(t, out.Events, 1)
}

func TestApply_TerminalBookingAbsorbsWebhooks(t *testing.T) {
	b := draftBooking("1000", "30")
	b.Status = domain.StatusCancelled

	out := Apply(b, aggWithNetPaid("500"), "pay-1", time.Now())
	assert.Equal(t, domain.StatusCancelled, b.Status)
	assert.Empty(t, out.Events)
	// the materialized total still tracks the ledger
	assert.True(t, b.AmountPaid.Equal(decimal.RequireFromString("500")))
	assert.True(t, out.Changed)
}

func TestCancel(t *testing.T) {
	b := draftBooking("1000", "30")
	ev, err := Cancel(b)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, domain.StatusCancelled, b.Status)

	// idempotent
	ev, err = Cancel(b)
	require.NoError(t, err)
	assert.Nil(t, ev)

	fulfilled := draftBooking("1000", "30")
	fulfilled.Status = domain.StatusFulfilled
	_, err = Cancel(fulfilled)
	require.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestFulfil(t *testing.T) {
	b := draftBooking("1000", "30")
	_, err := Fulfil(b)
	require.ErrorIs(t, err, domain.ErrStateConflict, "draft booking cannot be fulfilled")

	b.Status = domain.StatusConfirmed
	ev, err := Fulfil(b)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, domain.StatusFulfilled, b.Status)

	ev, err = Fulfil(b)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

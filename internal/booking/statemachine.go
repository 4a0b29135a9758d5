// Package booking holds booking persistence and the status state machine:
// draft -> confirmed -> {fulfilled, cancelled}. Transitions are explicit and
// invoked by the orchestrator, never a side effect of a row-update hook, so
// there is no trigger cascade to guard against.
package booking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// Outcome of one state-machine pass. Events are collected here and published
// by the orchestrator after the transaction commits.
type Outcome struct {
	Changed bool
	Events  []domain.Event
}

// Apply recomputes amount_paid from the ledger aggregate and advances the
// booking if warranted. Pure recomputation: re-running it against the same
// ledger state is always safe, which is what makes crash recovery a retry.
//
// Terminal bookings absorb the pass: the materialized total is still kept
// consistent with the ledger, but no transition fires and no event is
// emitted.
func Apply(b *domain.Booking, agg ledger.Aggregate, triggerPaymentID string, now time.Time) Outcome {
	var out Outcome
	if !b.AmountPaid.Equal(agg.NetPaid) {
		b.AmountPaid = agg.NetPaid
		out.Changed = true
	}

	switch b.Status {
	case domain.StatusDraft:
		if sufficient(b, agg.NetPaid) {
			b.Status = domain.StatusConfirmed
			t := now
			b.ConfirmedAt = &t
			out.Changed = true
			out.Events = append(out.Events, domain.BookingConfirmed{
				BookingID:        b.ID,
				TriggerPaymentID: triggerPaymentID,
			})
		}
	case domain.StatusConfirmed:
		if triggerPaymentID != "" {
			out.Events = append(out.Events, domain.PaymentApplied{
				BookingID:     b.ID,
				PaymentID:     triggerPaymentID,
				NewAmountPaid: b.AmountPaid,
				Currency:      b.Currency,
			})
		}
	}
	return out
}

// sufficient applies the down-payment rule. An unset or zero percentage means
// any non-zero payment confirms the booking; this mirrors the documented
// business default, it is not derived from the threshold formula.
func sufficient(b *domain.Booking, netPaid decimal.Decimal) bool {
	if b.PaymentPercentRequired.IsZero() {
		return netPaid.IsPositive()
	}
	required := b.AmountTotal.Mul(b.PaymentPercentRequired).Div(hundred)
	return netPaid.GreaterThanOrEqual(required)
}

// Cancel is an administrative transition. Idempotent for an already-cancelled
// booking; a fulfilled booking cannot be cancelled.
func Cancel(b *domain.Booking) (domain.Event, error) {
	switch b.Status {
	case domain.StatusCancelled:
		return nil, nil
	case domain.StatusDraft, domain.StatusConfirmed:
		b.Status = domain.StatusCancelled
		return domain.BookingCancelled{BookingID: b.ID}, nil
	default:
		return nil, fmt.Errorf("%w: cannot cancel booking %s in status %s",
			domain.ErrStateConflict, b.ID, b.Status)
	}
}

// Fulfil marks a confirmed rental as completed.
func Fulfil(b *domain.Booking) (domain.Event, error) {
	switch b.Status {
	case domain.StatusFulfilled:
		return nil, nil
	case domain.StatusConfirmed:
		b.Status = domain.StatusFulfilled
		return domain.BookingFulfilled{BookingID: b.ID}, nil
	default:
		return nil, fmt.Errorf("%w: cannot fulfil booking %s in status %s",
			domain.ErrStateConflict, b.ID, b.Status)
	}
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/domain"
)

// Aggregate is the booking-level view of the ledger, computed fresh from paid
// rows on every reconciliation pass. It is never cached across passes.
type Aggregate struct {
	PaidTotal         decimal.Decimal
	RefundTotal       decimal.Decimal
	NetPaid           decimal.Decimal
	DepositAuthorized bool
}

// Compute folds ledger rows into booking totals. Only paid rows count;
// deposits are excluded from revenue, refunds subtract. Deposit authorization
// also considers active (not yet captured, unexpired) holds.
func Compute(rows []domain.Payment, now time.Time) Aggregate {
	var agg Aggregate
	for _, p := range rows {
		switch p.State {
		case domain.PaymentPaid:
			switch {
			case p.Intent.CountsTowardPaid():
				agg.PaidTotal = agg.PaidTotal.Add(settledOrBase(p))
			case p.Intent == domain.IntentRefund:
				agg.RefundTotal = agg.RefundTotal.Add(settledOrBase(p))
			default: // security deposit: an authorization, not revenue
				agg.DepositAuthorized = true
			}
		case domain.PaymentActive:
			if p.Intent == domain.IntentSecurityDeposit && !expired(p, now) {
				agg.DepositAuthorized = true
			}
		}
	}
	agg.NetPaid = agg.PaidTotal.Sub(agg.RefundTotal)
	return agg
}

// settledOrBase prefers the gateway-confirmed amount when present; the base
// amount in booking currency is the fallback for legacy rows.
func settledOrBase(p domain.Payment) decimal.Decimal {
	if p.SettledAmount != nil {
		return *p.SettledAmount
	}
	return p.BaseAmount
}

func expired(p domain.Payment, now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

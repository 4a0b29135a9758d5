// Package fees computes the payable total for a payment attempt: base amount
// plus the method's percentage fee, optionally converted into the method's
// settlement currency. Pure computation; the only I/O is the rate lookup the
// caller hands in.
package fees

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/domain"
)

// RateSource resolves the latest conversion rate for a currency pair.
// Satisfied by rates.Repo.
type RateSource interface {
	Latest(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Quote is the deterministic result of ComputeTotal. Given the same inputs
// (including the resolved rate) it reproduces byte-for-byte.
type Quote struct {
	Base       domain.Money     `json:"base"`
	Fee        domain.Money     `json:"fee"`
	Total      domain.Money     `json:"total"`
	Settlement *domain.Money    `json:"settlement,omitempty"`
	Rate       *decimal.Decimal `json:"rate,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ComputeTotal applies the fee schedule and, when the policy demands it,
// converts into the settlement currency. A required conversion with no rate
// on file is a hard stop (domain.ErrRateUnavailable); we never fall through
// to an unconverted amount.
func ComputeTotal(ctx context.Context, base domain.Money, policy domain.PaymentMethodPolicy, src RateSource) (Quote, error) {
	if !policy.Enabled {
		return Quote{}, domain.ErrMethodDisabled
	}
	if policy.FeePercent.IsNegative() {
		return Quote{}, fmt.Errorf("negative fee percent %s for method %s", policy.FeePercent, policy.MethodType)
	}

	fee := domain.Money{
		Amount:   base.Amount.Mul(policy.FeePercent).Div(hundred).Round(domain.MinorUnits(base.Currency)),
		Currency: base.Currency,
	}
	total, err := base.Add(fee)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{Base: base, Fee: fee, Total: total}

	if policy.RequiresConversion && policy.SettlementCurrency != "" && policy.SettlementCurrency != base.Currency {
		rate, err := src.Latest(ctx, base.Currency, policy.SettlementCurrency)
		if err != nil {
			return Quote{}, err
		}
		// rounding applied once, at the end
		settlement := domain.Money{
			Amount:   total.Amount.Mul(rate).Round(domain.MinorUnits(policy.SettlementCurrency)),
			Currency: policy.SettlementCurrency,
		}
		q.Settlement = &settlement
		q.Rate = &rate
	}
	return q, nil
}

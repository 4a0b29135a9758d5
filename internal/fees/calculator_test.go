package fees

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rental-booking/internal/domain"
)

type stubRates map[string]decimal.Decimal

func (s stubRates) Latest(_ context.Context, from, to string) (decimal.Decimal, error) {
	if r, ok := s[from+"->"+to]; ok {
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s->%s", domain.ErrRateUnavailable, from, to)
}

func eur(s string) domain.Money {
	return domain.NewMoney(decimal.RequireFromString(s), "EUR")
}

func TestComputeTotal_FeeAndConversion(t *testing.T) {
	policy := domain.PaymentMethodPolicy{
		MethodType:         "card",
		FeePercent:         decimal.RequireFromString("2.5"),
		SettlementCurrency: "CHF",
		RequiresConversion: true,
		Enabled:            true,
	}
	rates := stubRates{"EUR->CHF": decimal.RequireFromString("0.95")}

	q, err := ComputeTotal(context.Background(), eur("100"), policy, rates)
	require.NoError(t, err)

	assert.Equal(t, "2.50 EUR", q.Fee.String())
	assert.Equal(t, "102.50 EUR", q.Total.String())
	require.NotNil(t, q.Settlement)
	// 102.50 * 0.95 = 97.375, rounded once at the end
	assert.Equal(t, "97.38 CHF", q.Settlement.String())
	require.NotNil(t, q.Rate)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("0.95")))
}

func TestComputeTotal_Deterministic(t *testing.T) {
	policy := domain.PaymentMethodPolicy{
		MethodType:         "card",
		FeePercent:         decimal.RequireFromString("2.5"),
		SettlementCurrency: "CHF",
		RequiresConversion: true,
		Enabled:            true,
	}
	rates := stubRates{"EUR->CHF": decimal.RequireFromString("0.95")}

	first, err := ComputeTotal(context.Background(), eur("100"), policy, rates)
	require.NoError(t, err)
	second, err := ComputeTotal(context.Background(), eur("100"), policy, rates)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeTotal_MissingRateIsHardStop(t *testing.T) {
	policy := domain.PaymentMethodPolicy{
		MethodType:         "card",
		FeePercent:         decimal.RequireFromString("2.5"),
		SettlementCurrency: "CHF",
		RequiresConversion: true,
		Enabled:            true,
	}

	_, err := ComputeTotal(context.Background(), eur("100"), policy, stubRates{})
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestComputeTotal_NoConversionWhenSameCurrency(t *testing.T) {
	policy := domain.PaymentMethodPolicy{
		MethodType:         "sepa",
		FeePercent:         decimal.Zero,
		SettlementCurrency: "EUR",
		RequiresConversion: true,
		Enabled:            true,
	}

	q, err := ComputeTotal(context.Background(), eur("250"), policy, stubRates{})
	require.NoError(t, err)
	assert.Nil(t, q.Settlement)
	assert.Nil(t, q.Rate)
	assert.Equal(t, "0.00 EUR", q.Fee.String())
	assert.Equal(t, "250.00 EUR", q.Total.String())
}

func TestComputeTotal_DisabledMethod(t *testing.T) {
	policy := domain.PaymentMethodPolicy{MethodType: "cash", Enabled: false}

	_, err := ComputeTotal(context.Background(), eur("10"), policy, stubRates{})
	require.ErrorIs(t, err, domain.ErrMethodDisabled)
}

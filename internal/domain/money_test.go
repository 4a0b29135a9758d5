package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_AddSub(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("10.50"), "EUR")
	b := NewMoney(decimal.RequireFromString("4.25"), "EUR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "14.75 EUR", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "6.25 EUR", diff.String())
}

func TestMoney_CurrencyMismatchIsAnError(t *testing.T) {
	eur := NewMoney(decimal.NewFromInt(10), "EUR")
	chf := NewMoney(decimal.NewFromInt(10), "CHF")

	_, err := eur.Add(chf)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = eur.Sub(chf)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_RoundUsesMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"97.375", "CHF", "97.38 CHF"},
		{"97.374", "CHF", "97.37 CHF"},
		{"1000.4", "JPY", "1000 JPY"},
		{"1000.5", "JPY", "1001 JPY"},
		{"1.23456", "KWD", "1.235 KWD"},
	}
	for _, tt := range tests {
		m := NewMoney(decimal.RequireFromString(tt.amount), tt.currency)
		assert.Equal(t, tt.want, m.Round().String(), "rounding %s %s", tt.amount, tt.currency)
	}
}

func TestIntent_CountsTowardPaid(t *testing.T) {
	assert.True(t, IntentDownPayment.CountsTowardPaid())
	assert.True(t, IntentBalancePayment.CountsTowardPaid())
	assert.True(t, IntentAdditionalPayment.CountsTowardPaid())
	assert.True(t, IntentSupplierPayment.CountsTowardPaid())
	assert.False(t, IntentSecurityDeposit.CountsTowardPaid())
	assert.False(t, IntentRefund.CountsTowardPaid())
}

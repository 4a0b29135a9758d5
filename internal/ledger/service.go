package ledger

import (
	"context"
	"fmt"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/fees"
)

// PolicySource fetches the fee schedule for a payment method. Satisfied by
// policy.Repo.
type PolicySource interface {
	ByMethod(ctx context.Context, methodType string) (*domain.PaymentMethodPolicy, error)
}

// BookingSource is the minimal view of bookings the ledger needs.
type BookingSource interface {
	ByID(ctx context.Context, id string) (*domain.Booking, error)
}

// Service creates ledger entries with fees and conversion resolved up front.
// Lifecycle transitions stay on Repo; creation is the only operation that
// needs the calculator and the policy table.
type Service struct {
	repo     *Repo
	policies PolicySource
	rates    fees.RateSource
	bookings BookingSource
}

func NewService(repo *Repo, policies PolicySource, rates fees.RateSource, bookings BookingSource) *Service {
	return &Service{repo: repo, policies: policies, rates: rates, bookings: bookings}
}

// CreatePending quotes the attempt and inserts it as pending. A conversion
// failure or disabled method aborts this attempt only; nothing is written.
func (s *Service) CreatePending(ctx context.Context, bookingID string, intent domain.PaymentIntent, base domain.Money, method string) (*domain.Payment, error) {
	b, err := s.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if base.Currency != b.Currency {
		return nil, fmt.Errorf("%w: payment in %s for booking priced in %s",
			domain.ErrCurrencyMismatch, base.Currency, b.Currency)
	}

	pol, err := s.policies.ByMethod(ctx, method)
	if err != nil {
		return nil, err
	}
	quote, err := fees.ComputeTotal(ctx, base, *pol, s.rates)
	if err != nil {
		return nil, err
	}

	p := &domain.Payment{
		BookingID:   bookingID,
		Intent:      intent,
		Method:      method,
		Currency:    base.Currency,
		BaseAmount:  base.Amount,
		FeeAmount:   quote.Fee.Amount,
		TotalAmount: quote.Total.Amount,
	}
	if quote.Settlement != nil {
		p.SettlementCurrency = quote.Settlement.Currency
		amt := quote.Settlement.Amount
		p.SettlementAmount = &amt
		p.ConversionRate = quote.Rate
	}
	if err := s.repo.CreatePending(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

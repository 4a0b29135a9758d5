// Package recon ties the ledger and the booking state machine together. One
// gateway event becomes one transactional pass: apply the ledger transition,
// recompute the booking's totals, advance its status, commit — then publish
// whatever domain events came out of it.
package recon

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/you/rental-booking/internal/booking"
	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/ledger"
)

// Ledger-affecting states a gateway delivery can report.
const (
	StateActivated = "activated"
	StateSettled   = "settled"
	StateExpired   = "expired"
	StateFailed    = "failed"
)

// EventPublisher is the notification boundary. Publishing is fire-and-forget:
// a slow or failing broker never blocks or rolls back a committed pass.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// GatewayUpdate is one normalized ledger-affecting event.
type GatewayUpdate struct {
	ProviderEventID string
	EntityID        string // provider transaction id (= ledger provider_reference)
	PaymentID       string // optional; carried in charge metadata
	State           string
	Amount          decimal.Decimal
	Currency        string
	ExpiresAt       *time.Time
	Reason          string
}

// Result summarizes a processed event; it is also what the webhook guard
// caches for replayed deliveries.
type Result struct {
	PaymentID     string               `json:"payment_id"`
	BookingID     string               `json:"booking_id"`
	Action        string               `json:"action"`
	Duplicate     bool                 `json:"duplicate,omitempty"`
	BookingStatus domain.BookingStatus `json:"booking_status,omitempty"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
}

type Orchestrator struct {
	db       *gorm.DB
	payments *ledger.Repo
	bookings *booking.Repo
	pub      EventPublisher
}

func New(db *gorm.DB, payments *ledger.Repo, bookings *booking.Repo, pub EventPublisher) *Orchestrator {
	return &Orchestrator{db: db, payments: payments, bookings: bookings, pub: pub}
}

// Process applies one gateway update. Settlements run the full pass; the
// other states touch only the ledger entry.
func (o *Orchestrator) Process(ctx context.Context, u GatewayUpdate) (*Result, error) {
	p, err := o.resolvePayment(ctx, u)
	if err != nil {
		return nil, err
	}

	switch u.State {
	case StateActivated:
		ap, err := o.payments.Activate(ctx, p.ID, u.EntityID, u.ExpiresAt)
		if err != nil {
			return nil, err
		}
		return &Result{PaymentID: ap.ID, BookingID: ap.BookingID, Action: StateActivated}, nil

	case StateSettled:
		return o.settle(ctx, p, u)

	case StateExpired:
		ep, err := o.payments.Expire(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &Result{PaymentID: ep.ID, BookingID: ep.BookingID, Action: StateExpired}, nil

	case StateFailed:
		return o.fail(ctx, p, u)

	default:
		return nil, fmt.Errorf("%w: unknown delivery state %q", domain.ErrStateConflict, u.State)
	}
}

// settle runs ledger settle + aggregate + state machine inside one
// transaction with the booking row locked, serializing concurrent passes for
// the same booking. Events publish only after commit.
func (o *Orchestrator) settle(ctx context.Context, p *domain.Payment, u GatewayUpdate) (*Result, error) {
	if err := checkSettlementCurrency(p, u); err != nil {
		return nil, err
	}
	amount := u.Amount
	if amount.IsZero() {
		amount = p.BaseAmount
	}

	var (
		res Result
		out booking.Outcome
	)
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := o.bookings.WithTx(tx).ByIDForUpdate(ctx, p.BookingID)
		if err != nil {
			return err
		}

		lr := o.payments.WithTx(tx)
		settled, duplicate, err := lr.Settle(ctx, p.ID, u.ProviderEventID, amount)
		if err != nil {
			return err
		}
		res = Result{
			PaymentID:     settled.ID,
			BookingID:     b.ID,
			Action:        StateSettled,
			Duplicate:     duplicate,
			BookingStatus: b.Status,
			AmountPaid:    b.AmountPaid,
		}
		if duplicate {
			// prior result stands; nothing to recompute, nothing to emit
			return nil
		}

		agg, err := lr.AggregateForBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		out = booking.Apply(b, agg, settled.ID, time.Now().UTC())
		if out.Changed {
			if err := o.bookings.WithTx(tx).Save(ctx, b); err != nil {
				return err
			}
		}
		res.BookingStatus = b.Status
		res.AmountPaid = b.AmountPaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.publish(ctx, out.Events)
	return &res, nil
}

func (o *Orchestrator) fail(ctx context.Context, p *domain.Payment, u GatewayUpdate) (*Result, error) {
	fp, err := o.payments.Fail(ctx, p.ID, u.Reason)
	if err != nil {
		return nil, err
	}
	b, err := o.bookings.ByID(ctx, fp.BookingID)
	if err != nil {
		return nil, err
	}
	// terminal bookings get the ledger record but no notifications
	if !b.Status.Terminal() {
		o.publish(ctx, []domain.Event{domain.PaymentFailedEvent{
			BookingID: fp.BookingID,
			PaymentID: fp.ID,
			Reason:    u.Reason,
		}})
	}
	return &Result{PaymentID: fp.ID, BookingID: fp.BookingID, Action: StateFailed, BookingStatus: b.Status, AmountPaid: b.AmountPaid}, nil
}

// Cancel and Fulfil are administrative transitions arriving from the admin
// system, not from gateway webhooks.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return o.administrative(ctx, bookingID, booking.Cancel)
}

func (o *Orchestrator) Fulfil(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return o.administrative(ctx, bookingID, booking.Fulfil)
}

func (o *Orchestrator) administrative(ctx context.Context, bookingID string, transition func(*domain.Booking) (domain.Event, error)) (*domain.Booking, error) {
	var (
		b  *domain.Booking
		ev domain.Event
	)
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		b, err = o.bookings.WithTx(tx).ByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		ev, err = transition(b)
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		return o.bookings.WithTx(tx).Save(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if ev != nil {
		o.publish(ctx, []domain.Event{ev})
	}
	return b, nil
}

// checkSettlementCurrency rejects a settlement denominated in a different
// currency than its ledger entry before anything is written. Summing it into
// booking-currency totals would be a silent cross-currency coercion.
// Deliveries that omit the currency settle in the entry's own.
func checkSettlementCurrency(p *domain.Payment, u GatewayUpdate) error {
	if u.Currency != "" && u.Currency != p.Currency {
		return fmt.Errorf("%w: settlement in %s for ledger entry priced in %s",
			domain.ErrCurrencyMismatch, u.Currency, p.Currency)
	}
	return nil
}

func (o *Orchestrator) resolvePayment(ctx context.Context, u GatewayUpdate) (*domain.Payment, error) {
	if u.PaymentID != "" {
		return o.payments.ByID(ctx, u.PaymentID)
	}
	return o.payments.ByProviderReference(ctx, u.EntityID)
}

func (o *Orchestrator) publish(ctx context.Context, events []domain.Event) {
	if o.pub == nil {
		return
	}
	for _, ev := range events {
		if err := o.pub.PublishJSON(ctx, ev.RoutingKey(), ev); err != nil {
			log.Printf("[recon] publish %s error: %v", ev.RoutingKey(), err)
		}
	}
}

package domain

import "github.com/shopspring/decimal"

// Routing keys published to the notification boundary. Email/reminder/chat
// subsystems consume these asynchronously; we never wait for them.
const (
	RKBookingConfirmed = "booking.confirmed"
	RKBookingCancelled = "booking.cancelled"
	RKBookingFulfilled = "booking.fulfilled"
	RKPaymentApplied   = "payment.applied"
	RKPaymentFailed    = "payment.failed"
)

// Event carries its own routing key so the orchestrator can publish a batch
// without a type switch.
type Event interface {
	RoutingKey() string
}

type BookingConfirmed struct {
	BookingID        string `json:"booking_id"`
	TriggerPaymentID string `json:"trigger_payment_id"`
}

func (BookingConfirmed) RoutingKey() string { return RKBookingConfirmed }

type BookingCancelled struct {
	BookingID string `json:"booking_id"`
}

func (BookingCancelled) RoutingKey() string { return RKBookingCancelled }

type BookingFulfilled struct {
	BookingID string `json:"booking_id"`
}

func (BookingFulfilled) RoutingKey() string { return RKBookingFulfilled }

type PaymentApplied struct {
	BookingID     string          `json:"booking_id"`
	PaymentID     string          `json:"payment_id"`
	NewAmountPaid decimal.Decimal `json:"new_amount_paid"`
	Currency      string          `json:"currency"`
}

func (PaymentApplied) RoutingKey() string { return RKPaymentApplied }

type PaymentFailedEvent struct {
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

func (PaymentFailedEvent) RoutingKey() string { return RKPaymentFailed }

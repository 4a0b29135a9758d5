package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentIntent string

const (
	IntentDownPayment       PaymentIntent = "down_payment"
	IntentBalancePayment    PaymentIntent = "balance_payment"
	IntentSecurityDeposit   PaymentIntent = "security_deposit"
	IntentRefund            PaymentIntent = "refund"
	IntentSupplierPayment   PaymentIntent = "supplier_payment"
	IntentAdditionalPayment PaymentIntent = "additional_payment"
)

func (i PaymentIntent) Valid() bool {
	switch i {
	case IntentDownPayment, IntentBalancePayment, IntentSecurityDeposit,
		IntentRefund, IntentSupplierPayment, IntentAdditionalPayment:
		return true
	}
	return false
}

// CountsTowardPaid reports whether a paid entry with this intent adds to the
// booking's amount_paid. Deposits are authorizations, not revenue; refunds
// subtract instead of add.
func (i PaymentIntent) CountsTowardPaid() bool {
	return i != IntentSecurityDeposit && i != IntentRefund
}

type PaymentState string

const (
	PaymentPending PaymentState = "pending"
	PaymentActive  PaymentState = "active"
	PaymentPaid    PaymentState = "paid"
	PaymentExpired PaymentState = "expired"
	PaymentFailed  PaymentState = "failed"
)

type BookingStatus string

const (
	StatusDraft     BookingStatus = "draft"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusFulfilled BookingStatus = "fulfilled"
)

func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusFulfilled
}

// Payment is one ledger entry: a single payment attempt and its lifecycle.
// Rows only move forward (pending -> active -> paid/expired/failed); a paid
// row is never reopened, corrections are new refund/additional_payment rows.
type Payment struct {
	ID                 string           `gorm:"primaryKey" json:"id"`
	BookingID          string           `gorm:"index" json:"booking_id"`
	Intent             PaymentIntent    `gorm:"index" json:"intent"`
	Method             string           `json:"method"`
	Currency           string           `json:"currency"`
	BaseAmount         decimal.Decimal  `gorm:"type:numeric" json:"base_amount"`
	FeeAmount          decimal.Decimal  `gorm:"type:numeric" json:"fee_amount"`
	TotalAmount        decimal.Decimal  `gorm:"type:numeric" json:"total_amount"`
	SettlementCurrency string           `json:"settlement_currency,omitempty"`
	SettlementAmount   *decimal.Decimal `gorm:"type:numeric" json:"settlement_amount,omitempty"`
	ConversionRate     *decimal.Decimal `gorm:"type:numeric" json:"conversion_rate,omitempty"`
	SettledAmount      *decimal.Decimal `gorm:"type:numeric" json:"settled_amount,omitempty"`
	State              PaymentState     `gorm:"index" json:"state"`
	ProviderReference  string           `gorm:"index" json:"provider_reference,omitempty"`
	ProviderEventID    *string          `gorm:"uniqueIndex" json:"provider_event_id,omitempty"`
	FailureReason      string           `json:"failure_reason,omitempty"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	SettledAt          *time.Time       `json:"settled_at,omitempty"`
}

func (p Payment) Base() Money  { return Money{Amount: p.BaseAmount, Currency: p.Currency} }
func (p Payment) Total() Money { return Money{Amount: p.TotalAmount, Currency: p.Currency} }

// Booking's AmountPaid is a materialized view over the ledger. It is always
// recomputed from paid rows, never incremented in place.
type Booking struct {
	ID                     string          `gorm:"primaryKey" json:"id"`
	CustomerID             string          `gorm:"index" json:"customer_id"`
	Status                 BookingStatus   `gorm:"index" json:"status"`
	Currency               string          `json:"currency"`
	AmountTotal            decimal.Decimal `gorm:"type:numeric" json:"amount_total"`
	AmountPaid             decimal.Decimal `gorm:"type:numeric" json:"amount_paid"`
	PaymentPercentRequired decimal.Decimal `gorm:"type:numeric" json:"payment_percent_required"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	ConfirmedAt            *time.Time      `json:"confirmed_at,omitempty"`
}

type RateOrigin string

const (
	RateManual RateOrigin = "manual"
	RateAPI    RateOrigin = "api"
)

// ConversionRate rows are append-only. The authoritative rate for a pair is
// the latest by EffectiveFrom, ties broken by insertion time. Superseded rows
// stay put for audit.
type ConversionRate struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	FromCurrency  string          `gorm:"index:idx_rate_pair" json:"from_currency"`
	ToCurrency    string          `gorm:"index:idx_rate_pair" json:"to_currency"`
	Rate          decimal.Decimal `gorm:"type:numeric" json:"rate"`
	EffectiveFrom time.Time       `gorm:"index" json:"effective_from"`
	Source        RateOrigin      `json:"source"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentMethodPolicy is read-only configuration supplied by the surrounding
// system; the calculator never mutates it.
type PaymentMethodPolicy struct {
	MethodType         string          `gorm:"primaryKey" json:"method_type"`
	FeePercent         decimal.Decimal `gorm:"type:numeric" json:"fee_percent"`
	SettlementCurrency string          `json:"settlement_currency"`
	RequiresConversion bool            `json:"requires_conversion"`
	Enabled            bool            `json:"enabled"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type WebhookStatus string

const (
	WebhookProcessing WebhookStatus = "processing"
	WebhookSuccess    WebhookStatus = "success"
	WebhookError      WebhookStatus = "error"
)

// WebhookLog records every inbound delivery attempt, including provider
// retries of the same event. It doubles as the idempotency lookup and the
// monitoring dashboard's data source.
type WebhookLog struct {
	ID                   string        `gorm:"primaryKey" json:"id"`
	ProviderEventID      string        `gorm:"index" json:"provider_event_id"`
	EntityID             string        `gorm:"index" json:"entity_id"`
	Status               WebhookStatus `gorm:"index" json:"status"`
	ProcessingDurationMs int64         `json:"processing_duration_ms"`
	RequestPayload       string        `gorm:"type:text" json:"request_payload"`
	ResponseData         string        `gorm:"type:text" json:"response_data,omitempty"`
	ErrorMessage         string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt            time.Time     `gorm:"index" json:"created_at"`
}

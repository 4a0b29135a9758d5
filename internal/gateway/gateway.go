// Package gateway is the outbound port to the payment provider. The engine
// works without one (webhooks are still ingested and reconciled); a
// configured adapter adds event verification and charge-link issuance.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a provider-verified snapshot of a gateway event, re-fetched from
// the provider rather than trusted from the webhook body.
type Event struct {
	ProviderEventID   string
	ProviderReference string // provider transaction (charge) id
	PaymentID         string // our ledger id, carried in charge metadata
	BookingID         string
	State             string // settled | failed | expired | activated
	Amount            decimal.Decimal
	Currency          string
	FailureReason     string
}

// Verifier confirms a webhook's event against the provider before any side
// effect is applied.
type Verifier interface {
	VerifyEvent(ctx context.Context, providerEventID string) (*Event, error)
}

// ChargeRequest issues a charge for an activated-to-be ledger entry.
type ChargeRequest struct {
	PaymentID string
	BookingID string
	Amount    decimal.Decimal
	Currency  string
	SourceID  string // provider payment source (client-created)
	CardToken string
}

// Charger creates charges at the provider and reports the reference and link
// lifetime back so the ledger entry can be activated.
type Charger interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (providerRef string, expiresAt time.Time, err error)
}

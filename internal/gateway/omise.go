package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/domain"
)

// OmiseGateway adapts the Omise SDK to the engine's ports. Amounts cross the
// wire in minor units (satang/cents); the ledger keeps decimals.
type OmiseGateway struct {
	client  *omise.Client
	linkTTL time.Duration
}

func NewOmise(publicKey, secretKey string, linkTTL time.Duration) (*OmiseGateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	c.SetDebug(false)
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	return &OmiseGateway{client: c, linkTTL: linkTTL}, nil
}

// VerifyEvent re-fetches the event from Omise instead of trusting the webhook
// body. A delivery naming an event the provider does not know is rejected
// before any side effect.
func (g *OmiseGateway) VerifyEvent(ctx context.Context, providerEventID string) (*Event, error) {
	ev := &omise.Event{}
	if err := g.client.Do(ev, &operations.RetrieveEvent{EventID: providerEventID}); err != nil {
		return nil, fmt.Errorf("retrieve event %s: %w", providerEventID, err)
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge from event %s: %w", providerEventID, err)
	}

	out := &Event{
		ProviderEventID:   providerEventID,
		ProviderReference: ch.ID,
		Currency:          ch.Currency,
		Amount:            minorToDecimal(ch.Amount, ch.Currency),
	}
	out.PaymentID, _ = ch.Metadata["payment_id"].(string)
	out.BookingID, _ = ch.Metadata["booking_id"].(string)

	switch {
	case string(ch.Status) == "successful":
		out.State = "settled"
	case string(ch.Status) == "failed":
		out.State = "failed"
		if ch.FailureCode != nil {
			out.FailureReason = *ch.FailureCode
		}
	case string(ch.Status) == "expired":
		out.State = "expired"
	default:
		out.State = "activated"
	}
	return out, nil
}

func (g *OmiseGateway) CreateCharge(ctx context.Context, req ChargeRequest) (string, time.Time, error) {
	op := &operations.CreateCharge{
		Amount:   decimalToMinor(req.Amount, req.Currency),
		Currency: req.Currency,
		Metadata: map[string]any{
			"payment_id": req.PaymentID,
			"booking_id": req.BookingID,
		},
	}
	switch {
	case req.SourceID != "":
		op.Source = req.SourceID
	case req.CardToken != "":
		op.Card = req.CardToken
	default:
		return "", time.Time{}, fmt.Errorf("charge request needs a source or card token")
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, op); err != nil {
		return "", time.Time{}, fmt.Errorf("create charge: %w", err)
	}
	return ch.ID, time.Now().UTC().Add(g.linkTTL), nil
}

func decimalToMinor(d decimal.Decimal, currency string) int64 {
	return d.Shift(domain.MinorUnits(currency)).IntPart()
}

func minorToDecimal(v int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-domain.MinorUnits(currency))
}

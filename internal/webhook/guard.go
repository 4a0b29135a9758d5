// Package webhook is the single front door for gateway callbacks: every
// delivery is logged, deduplicated by provider event id, and only then
// allowed to touch the ledger. Replay protection lives here and nowhere else.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/gateway"
	"github.com/you/rental-booking/internal/recon"
)

// ErrBadDelivery marks a malformed inbound request; the gateway gets a 4xx
// and should not retry.
var ErrBadDelivery = errors.New("bad webhook delivery")

// Delivery is the raw inbound callback body.
type Delivery struct {
	ProviderEventID string          `json:"providerEventId" binding:"required"`
	EntityID        string          `json:"entityId" binding:"required"`
	EventType       string          `json:"eventType"`
	State           string          `json:"state" binding:"required"`
	Payload         json.RawMessage `json:"payload"`
}

// optional payload fields the provider includes alongside the event
type payloadBody struct {
	PaymentID string           `json:"payment_id"`
	Amount    *decimal.Decimal `json:"amount"`
	Currency  string           `json:"currency"`
	ExpiresAt *time.Time       `json:"expires_at"`
	Reason    string           `json:"reason"`
}

// LogStore persists the audit/idempotency trail. Satisfied by LogRepo.
type LogStore interface {
	Insert(ctx context.Context, row *domain.WebhookLog) error
	LatestSuccess(ctx context.Context, providerEventID string) (*domain.WebhookLog, error)
	Finalize(ctx context.Context, id string, status domain.WebhookStatus, durationMs int64, response, errMsg string) error
}

// Processor applies a normalized update. Satisfied by recon.Orchestrator.
type Processor interface {
	Process(ctx context.Context, u recon.GatewayUpdate) (*recon.Result, error)
}

type Guard struct {
	logs     LogStore
	proc     Processor
	verifier gateway.Verifier // optional
	retries  int
	backoff  time.Duration
}

func NewGuard(logs LogStore, proc Processor, verifier gateway.Verifier, retries int) *Guard {
	if retries <= 0 {
		retries = 3
	}
	return &Guard{logs: logs, proc: proc, verifier: verifier, retries: retries, backoff: 100 * time.Millisecond}
}

// Ingest runs one delivery end to end. The log row is written before any side
// effect; a prior success for the same provider event id short-circuits with
// the cached result so replayed events never re-apply effects.
func (g *Guard) Ingest(ctx context.Context, d Delivery) (*recon.Result, error) {
	if d.ProviderEventID == "" || d.EntityID == "" || d.State == "" {
		return nil, fmt.Errorf("%w: providerEventId, entityId and state are required", ErrBadDelivery)
	}

	started := time.Now()
	row := &domain.WebhookLog{
		ProviderEventID: d.ProviderEventID,
		EntityID:        d.EntityID,
		Status:          domain.WebhookProcessing,
		RequestPayload:  string(mustJSON(d)),
	}
	if err := g.logs.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("record webhook receipt: %w", err)
	}

	finish := func(status domain.WebhookStatus, response, errMsg string) {
		dur := time.Since(started).Milliseconds()
		if ferr := g.logs.Finalize(ctx, row.ID, status, dur, response, errMsg); ferr != nil {
			log.Printf("[webhook] finalize log %s error: %v", row.ID, ferr)
		}
	}

	// true idempotency: a replay of an already-successful event returns the
	// cached result without touching the ledger
	if prior, err := g.logs.LatestSuccess(ctx, d.ProviderEventID); err != nil {
		finish(domain.WebhookError, "", err.Error())
		return nil, err
	} else if prior != nil {
		var cached recon.Result
		if err := json.Unmarshal([]byte(prior.ResponseData), &cached); err != nil {
			finish(domain.WebhookError, "", "corrupt cached result: "+err.Error())
			return nil, fmt.Errorf("corrupt cached result for event %s: %w", d.ProviderEventID, err)
		}
		cached.Duplicate = true
		finish(domain.WebhookSuccess, prior.ResponseData, "")
		return &cached, nil
	}

	update, err := g.normalize(ctx, d)
	if err != nil {
		finish(domain.WebhookError, "", err.Error())
		return nil, err
	}

	res, err := g.processWithRetry(ctx, update)
	if err != nil {
		finish(domain.WebhookError, "", err.Error())
		return nil, err
	}

	finish(domain.WebhookSuccess, string(mustJSON(res)), "")
	return res, nil
}

// normalize folds the payload and, when configured, the provider-verified
// event into one update. Verification failure rejects the delivery before any
// side effect.
func (g *Guard) normalize(ctx context.Context, d Delivery) (recon.GatewayUpdate, error) {
	var body payloadBody
	if len(d.Payload) > 0 {
		if err := json.Unmarshal(d.Payload, &body); err != nil {
			return recon.GatewayUpdate{}, fmt.Errorf("%w: payload: %v", ErrBadDelivery, err)
		}
	}

	u := recon.GatewayUpdate{
		ProviderEventID: d.ProviderEventID,
		EntityID:        d.EntityID,
		PaymentID:       body.PaymentID,
		State:           d.State,
		Currency:        body.Currency,
		ExpiresAt:       body.ExpiresAt,
		Reason:          body.Reason,
	}
	if body.Amount != nil {
		u.Amount = *body.Amount
	}

	if g.verifier != nil {
		ev, err := g.verifier.VerifyEvent(ctx, d.ProviderEventID)
		if err != nil {
			return recon.GatewayUpdate{}, fmt.Errorf("%w: provider verification: %v", ErrBadDelivery, err)
		}
		// the provider's word beats the webhook body
		u.State = ev.State
		u.EntityID = ev.ProviderReference
		if ev.PaymentID != "" {
			u.PaymentID = ev.PaymentID
		}
		if !ev.Amount.IsZero() {
			u.Amount = ev.Amount
			u.Currency = ev.Currency
		}
		if ev.FailureReason != "" {
			u.Reason = ev.FailureReason
		}
	}
	return u, nil
}

// processWithRetry retries transient storage failures a bounded number of
// times; business-rule rejections are final on the first attempt. After
// exhaustion the gateway's own redelivery takes over.
func (g *Guard) processWithRetry(ctx context.Context, u recon.GatewayUpdate) (*recon.Result, error) {
	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(g.backoff << (attempt - 1))
		}
		res, err := g.proc.Process(ctx, u)
		if err == nil {
			return res, nil
		}
		if !transient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", g.retries, lastErr)
}

func transient(err error) bool {
	switch {
	case errors.Is(err, domain.ErrStateConflict),
		errors.Is(err, domain.ErrInvalidIntent),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrRateUnavailable),
		errors.Is(err, domain.ErrMethodDisabled),
		errors.Is(err, domain.ErrPolicyNotFound),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, ErrBadDelivery):
		return false
	}
	return true
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

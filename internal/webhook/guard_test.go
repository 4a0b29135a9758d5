package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/recon"
)

type fakeLogStore struct {
	rows []*domain.WebhookLog
}

func (f *fakeLogStore) Insert(_ context.Context, row *domain.WebhookLog) error {
	if row.ID == "" {
		row.ID = fmt.Sprintf("log-%d", len(f.rows))
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeLogStore) LatestSuccess(_ context.Context, providerEventID string) (*domain.WebhookLog, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.ProviderEventID == providerEventID && r.Status == domain.WebhookSuccess {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeLogStore) Finalize(_ context.Context, id string, status domain.WebhookStatus, durationMs int64, response, errMsg string) error {
	for _, r := range f.rows {
		if r.ID == id {
			r.Status = status
			r.ProcessingDurationMs = durationMs
			r.ResponseData = response
			r.ErrorMessage = errMsg
			return nil
		}
	}
	return errors.New("log row not found")
}

func (f *fakeLogStore) byStatus(status domain.WebhookStatus) int {
	n := 0
	for _, r := range f.rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

type fakeProcessor struct {
	calls int
	fn    func(u recon.GatewayUpdate) (*recon.Result, error)
}

func (f *fakeProcessor) Process(_ context.Context, u recon.GatewayUpdate) (*recon.Result, error) {
	f.calls++
	return f.fn(u)
}

func delivery(eventID string) Delivery {
	return Delivery{
		ProviderEventID: eventID,
		EntityID:        "chrg_1",
		EventType:       "charge.complete",
		State:           recon.StateSettled,
		Payload:         json.RawMessage(`{"payment_id":"pay-1","amount":"300","currency":"EUR"}`),
	}
}

func newTestGuard(logs LogStore, proc Processor) *Guard {
	g := NewGuard(logs, proc, nil, 3)
	g.backoff = time.Millisecond
	return g
}

func TestIngest_ReplayReturnsCachedResultWithoutReprocessing(t *testing.T) {
	logs := &fakeLogStore{}
	proc := &fakeProcessor{fn: func(u recon.GatewayUpdate) (*recon.Result, error) {
		return &recon.Result{PaymentID: u.PaymentID, BookingID: "bk-1", Action: recon.StateSettled}, nil
	}}
	g := newTestGuard(logs, proc)

	first, err := g.Ingest(context.Background(), delivery("evt_1"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	for i := 0; i < 3; i++ {
		res, err := g.Ingest(context.Background(), delivery("evt_1"))
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, first.PaymentID, res.PaymentID)
		assert.Equal(t, first.BookingID, res.BookingID)
	}

	// effects applied exactly once, but every delivery attempt is on record
	assert.Equal(t, 1, proc.calls)
	assert.Len(t, logs.rows, 4)
	assert.Equal(t, 4, logs.byStatus(domain.WebhookSuccess))
}

func TestIngest_BusinessErrorIsFinal(t *testing.T) {
	logs := &fakeLogStore{}
	proc := &fakeProcessor{fn: func(recon.GatewayUpdate) (*recon.Result, error) {
		return nil, domain.ErrStateConflict
	}}
	g := newTestGuard(logs, proc)

	_, err := g.Ingest(context.Background(), delivery("evt_2"))
	require.ErrorIs(t, err, domain.ErrStateConflict)
	assert.Equal(t, 1, proc.calls, "business rejections are not retried")
	assert.Equal(t, 1, logs.byStatus(domain.WebhookError))
}

func TestIngest_CurrencyMismatchIsFinal(t *testing.T) {
	logs := &fakeLogStore{}
	proc := &fakeProcessor{fn: func(recon.GatewayUpdate) (*recon.Result, error) {
		return nil, fmt.Errorf("%w: settlement in CHF for ledger entry priced in EUR", domain.ErrCurrencyMismatch)
	}}
	g := newTestGuard(logs, proc)

	d := delivery("evt_6")
	d.Payload = json.RawMessage(`{"payment_id":"pay-1","amount":"300","currency":"CHF"}`)
	_, err := g.Ingest(context.Background(), d)
	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	assert.Equal(t, 1, proc.calls, "a cross-currency settlement never becomes valid on retry")
	assert.Equal(t, 1, logs.byStatus(domain.WebhookError))
}

func TestIngest_TransientErrorRetriesThenSucceeds(t *testing.T) {
	logs := &fakeLogStore{}
	proc := &fakeProcessor{}
	proc.fn = func(u recon.GatewayUpdate) (*recon.Result, error) {
		if proc.calls < 3 {
			return nil, errors.New("storage hiccup")
		}
		return &recon.Result{PaymentID: u.PaymentID, Action: recon.StateSettled}, nil
	}
	g := newTestGuard(logs, proc)

	res, err := g.Ingest(context.Background(), delivery("evt_3"))
	require.NoError(t, err)
	assert.Equal(t, 3, proc.calls)
	assert.Equal(t, "pay-1", res.PaymentID)
	assert.Equal(t, 1, logs.byStatus(domain.WebhookSuccess))
}

func TestIngest_TransientErrorExhaustsAndSurfaces(t *testing.T) {
	logs := &fakeLogStore{}
	proc := &fakeProcessor{fn: func(recon.GatewayUpdate) (*recon.Result, error) {
		return nil, errors.New("storage down")
	}}
	g := newTestGuard(logs, proc)

	_, err := g.Ingest(context.Background(), delivery("evt_4"))
	require.Error(t, err)
	assert.Equal(t, 3, proc.calls)
	require.Len(t, logs.rows, 1)
	assert.Equal(t, domain.WebhookError, logs.rows[0].Status)
	assert.Contains(t, logs.rows[0].ErrorMessage, "storage down")

	// the gateway redelivers; with storage healthy again the event lands
	proc.fn = func(u recon.GatewayUpdate) (*recon.Result, error) {
		return &recon.Result{PaymentID: u.PaymentID, Action: recon.StateSettled}, nil
	}
	res, err := g.Ingest(context.Background(), delivery("evt_4"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestIngest_RejectsMissingFields(t *testing.T) {
	g := newTestGuard(&fakeLogStore{}, &fakeProcessor{fn: func(recon.GatewayUpdate) (*recon.Result, error) {
		t.Fatal("processor must not run for a malformed delivery")
		return nil, nil
	}})

	_, err := g.Ingest(context.Background(), Delivery{EntityID: "chrg_1", State: "settled"})
	require.ErrorIs(t, err, ErrBadDelivery)
}

func TestIngest_MalformedPayloadIsBadDelivery(t *testing.T) {
	logs := &fakeLogStore{}
	g := newTestGuard(logs, &fakeProcessor{fn: func(recon.GatewayUpdate) (*recon.Result, error) {
		t.Fatal("processor must not run")
		return nil, nil
	}})

	d := delivery("evt_5")
	d.Payload = json.RawMessage(`{"amount":`)
	_, err := g.Ingest(context.Background(), d)
	require.ErrorIs(t, err, ErrBadDelivery)
	assert.Equal(t, 1, logs.byStatus(domain.WebhookError))
}

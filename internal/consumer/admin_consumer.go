package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/recon"
	"github.com/you/rental-booking/pkg/mq"
)

// Routing keys the admin system publishes when staff cancel or close out a
// rental. The transitions themselves are outside the reconciliation core;
// applying them to booking state is not.
const (
	RKCancelRequested = "booking.cancel.requested"
	RKFulfilRequested = "booking.fulfil.requested"
)

type AdminEvent struct {
	Event   string `json:"event"`
	Version int    `json:"version"`
	Data    struct {
		BookingID   string `json:"booking_id"`
		RequestedBy string `json:"requested_by"`
	} `json:"data"`
}

type AdminConsumer struct {
	orch *recon.Orchestrator
	cons *mq.Consumer
}

func NewAdminConsumer(orch *recon.Orchestrator, cons *mq.Consumer) *AdminConsumer {
	return &AdminConsumer{orch: orch, cons: cons}
}

func (ac *AdminConsumer) Run(ctx context.Context) error {
	msgs, err := ac.cons.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range msgs {
			var evt AdminEvent
			if err := json.Unmarshal(d.Body, &evt); err != nil {
				log.Printf("[admin-consumer] unmarshal error: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			if evt.Data.BookingID == "" {
				log.Printf("[admin-consumer] invalid event payload key=%s", d.RoutingKey)
				_ = d.Ack(false)
				continue
			}

			var herr error
			switch d.RoutingKey {
			case RKCancelRequested:
				_, herr = ac.orch.Cancel(ctx, evt.Data.BookingID)
			case RKFulfilRequested:
				_, herr = ac.orch.Fulfil(ctx, evt.Data.BookingID)
			default:
				_ = d.Ack(false)
				continue
			}

			switch {
			case herr == nil:
				_ = d.Ack(false)
			case errors.Is(herr, domain.ErrStateConflict), errors.Is(herr, domain.ErrBookingNotFound):
				// business rejection is final; requeueing would just loop
				log.Printf("[admin-consumer] rejected key=%s booking=%s err=%v", d.RoutingKey, evt.Data.BookingID, herr)
				_ = d.Ack(false)
			default:
				log.Printf("[admin-consumer] transient error key=%s booking=%s err=%v -> requeue", d.RoutingKey, evt.Data.BookingID, herr)
				_ = d.Nack(false, true)
			}
		}
	}()
	return nil
}

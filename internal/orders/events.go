package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/warehouse-sim/shipping-coordinator/internal/kafka"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderShipped = "OrderShipped"
	EventOrderStuck   = "OrderStuck"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	TotalCents     int64  `json:"total_cents"`
	ItemCount      int    `json:"item_count"`
}

type OrderShippedPayload struct {
	OrderID   string `json:"order_id"`
	Recovered bool   `json:"recovered"`
}

// OrderStuckPayload marks a shipment whose deduction outcome is unknown:
// the client gave up but the ledger may have committed. The reconciler
// consumes these for targeted repair.
type OrderStuckPayload struct {
	OrderID  string `json:"order_id"`
	Reason   string `json:"reason"`
	TimedOut bool   `json:"timed_out"`
}

// Publisher fans shipment lifecycle events out over kafka. A nil Publisher
// (or nil topic producer) is a no-op so the coordinator runs broker-less.
type Publisher struct {
	Created *kafkax.Producer
	Shipped *kafkax.Producer
	Stuck   *kafkax.Producer
	Service string
}

func (p *Publisher) publish(prod *kafkax.Producer, eventType, orderID string, payload any) {
	if p == nil || prod == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	prod.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *Publisher) OrderCreated(o *Order) {
	if p == nil {
		return
	}
	p.publish(p.Created, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:        o.ID,
		IdempotencyKey: o.IdempotencyKey,
		TotalCents:     o.TotalCents,
		ItemCount:      len(o.Items),
	})
}

func (p *Publisher) OrderShipped(orderID string, recovered bool) {
	if p == nil {
		return
	}
	p.publish(p.Shipped, EventOrderShipped, orderID, OrderShippedPayload{
		OrderID: orderID, Recovered: recovered,
	})
}

func (p *Publisher) OrderStuck(orderID, reason string, timedOut bool) {
	if p == nil {
		return
	}
	p.publish(p.Stuck, EventOrderStuck, orderID, OrderStuckPayload{
		OrderID: orderID, Reason: reason, TimedOut: timedOut,
	})
}

package events

import (
	"context"
	"time"
)

const (
	EventOrderCreated      = "order.created"
	EventOrderValidated    = "order.validated"
	EventServiceActivated  = "service.activated"
	EventServiceUpdated    = "service.updated"
	EventServiceRenewed    = "service.renewed"
	EventServiceTerminated = "service.terminated"
)

// Event is the payload published for every lifecycle change.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CustomerID int64     `json:"customer_id"`
	OrderID    int64     `json:"order_id,omitempty"`
	ServiceID  int64     `json:"service_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	EndedAt    string    `json:"ended_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
	Close() error
}

type Subscriber interface {
	// Subscribe blocks delivering message bodies to handle until ctx is done.
	Subscribe(ctx context.Context, handle func(body []byte)) error
	Close() error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(ctx context.Context, eventType, key string, payload []byte) error { return nil }
func (Discard) Close() error                                                            { return nil }

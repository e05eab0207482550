// Package outbox relays committed lifecycle events from the outbox table to the broker.
package outbox

import (
	"context"
	"time"

	"gozon/internal/events"
	"gozon/internal/logging"
	"gozon/internal/metrics"
	"gozon/internal/repository"
)

// Source is the part of the store the processor drains.
type Source interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id int64) error
}

type OutboxProcessor struct {
	src       Source
	publisher events.Publisher
	metrics   *metrics.ServerMetrics
	interval  time.Duration
	batch     int
}

func NewOutboxProcessor(src Source, publisher events.Publisher, interval time.Duration, batch int, m *metrics.ServerMetrics) *OutboxProcessor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	return &OutboxProcessor{src: src, publisher: publisher, metrics: m, interval: interval, batch: batch}
}

// Start polls the outbox until ctx is cancelled. The returned channel closes once it has stopped.
func (p *OutboxProcessor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.ProcessEvents(ctx)
			}
		}
	}()
	return done
}

// ProcessEvents publishes one batch in insertion order and returns how many were sent.
// An event that fails to publish stays pending, and so does everything after it,
// which keeps per-customer ordering intact.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) int {
	pending, err := p.src.FetchPendingOutbox(ctx, p.batch)
	if err != nil {
		logging.Log(logging.Fields{Service: "outbox", Step: "fetch", Status: "error", Error: err.Error()})
		return 0
	}
	sent := 0
	for _, ev := range pending {
		if err := p.publisher.Publish(ctx, ev.Type, ev.Key, ev.Payload); err != nil {
			p.count(ev.Type, "failed")
			logging.Log(logging.Fields{Service: "outbox", EventID: ev.EventID, Step: "publish", Status: "error", Error: err.Error()})
			return sent
		}
		if err := p.src.MarkOutboxProcessed(ctx, ev.ID); err != nil {
			// published but not marked: it will be sent again, consumers dedupe on event_id
			logging.Log(logging.Fields{Service: "outbox", EventID: ev.EventID, Step: "mark", Status: "error", Error: err.Error()})
			return sent
		}
		p.count(ev.Type, "published")
		sent++
	}
	return sent
}

func (p *OutboxProcessor) count(eventType, result string) {
	if p.metrics != nil {
		p.metrics.Events.WithLabelValues(eventType, result).Inc()
	}
}

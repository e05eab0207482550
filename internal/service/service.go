// Package service implements the order and active-service lifecycle: the order ledger,
// service activation and termination, the service registry and the customer dashboard.
//
// Every mutating operation runs inside one store transaction together with the outbox
// rows describing it, so a lifecycle change and its event are committed or rolled back as
// a unit.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gozon/internal/access"
	"gozon/internal/catalog"
	"gozon/internal/domain"
	"gozon/internal/events"
	"gozon/internal/logging"
	"gozon/internal/repository"
)

const logService = "order-service"

type Service struct {
	store   repository.Store
	policy  *access.Policy
	catalog *catalog.Lookup
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for activation, renewal and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		policy:  access.NewPolicy(store),
		catalog: catalog.NewLookup(store),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() *access.Policy {
	return s.policy
}

func (s *Service) Catalog() *catalog.Lookup {
	return s.catalog
}

func (s *Service) emit(ctx context.Context, q repository.Queries, ev events.Event) error {
	ev.EventID = uuid.NewString()
	ev.CreatedAt = s.now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return domain.Internal("failed to encode event", err)
	}
	err = q.InsertOutbox(ctx, repository.OutboxEvent{
		EventID: ev.EventID,
		Type:    ev.Type,
		Key:     strconv.FormatInt(ev.CustomerID, 10),
		Payload: payload,
	})
	if err != nil {
		return domain.Internal("failed to record event", err)
	}
	return nil
}

// wrap keeps domain errors as they are and hides anything else behind message.
func wrap(err error, message string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(message, err)
}

func logStep(actor domain.Actor, step string, f logging.Fields) {
	f.Service = logService
	f.ActorID = actor.ID
	f.Step = step
	logging.Log(f)
}

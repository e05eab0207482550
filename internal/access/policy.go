// Package access decides who an actor is and what they may touch.
package access

import (
	"context"

	"gozon/internal/domain"
)

type Scope int

const (
	// Administration actions are reserved for operators.
	Administration Scope = iota
	// SelfService actions are open to operators and to the customer who owns the target.
	SelfService
)

// Directory answers identity membership questions.
type Directory interface {
	StaffExists(ctx context.Context, id int64) (bool, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
}

type Policy struct {
	dir Directory
}

func NewPolicy(dir Directory) *Policy {
	return &Policy{dir: dir}
}

// Classify resolves an id to an operator or a customer. An id present in both tables is
// refused rather than guessed.
func (p *Policy) Classify(ctx context.Context, actorID int64) (domain.Actor, error) {
	isStaff, err := p.dir.StaffExists(ctx, actorID)
	if err != nil {
		return domain.Actor{}, domain.Internal("failed to resolve actor", err)
	}
	isCustomer, err := p.dir.CustomerExists(ctx, actorID)
	if err != nil {
		return domain.Actor{}, domain.Internal("failed to resolve actor", err)
	}
	switch {
	case isStaff && isCustomer:
		return domain.Actor{}, domain.Forbidden("actor %d is ambiguous", actorID)
	case isStaff:
		return domain.Actor{ID: actorID, Role: domain.RoleOperator}, nil
	case isCustomer:
		return domain.Actor{ID: actorID, Role: domain.RoleCustomer}, nil
	}
	return domain.Actor{}, domain.Forbidden("unknown actor %d", actorID)
}

func (p *Policy) Authorize(actor domain.Actor, scope Scope, ownerID int64) error {
	switch scope {
	case Administration:
		if actor.IsOperator() {
			return nil
		}
		return domain.Forbidden("operator access required")
	case SelfService:
		if actor.IsOperator() || (actor.Role == domain.RoleCustomer && actor.ID == ownerID) {
			return nil
		}
		return domain.Forbidden("access to another customer's data is not allowed")
	}
	return domain.Forbidden("unknown access scope")
}

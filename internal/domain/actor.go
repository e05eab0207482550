package domain

import "context"

type Role string

const (
	RoleOperator Role = "operator"
	RoleCustomer Role = "customer"
)

type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) IsOperator() bool {
	return a.Role == RoleOperator
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

package authz

import "context"

type contextKey struct{}

// WithActor stores actor in ctx; the auth middleware calls it once per request
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ContextGate reads the actor placed in the context by WithActor
type ContextGate struct{}

// NewContextGate creates the request-context gate
func NewContextGate() ContextGate {
	return ContextGate{}
}

func (ContextGate) CurrentActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}

package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting administrator's id in context.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the actor id placed by the actor middleware.
// The second return is false when no actor header was presented.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}

package api

import (
	"context"

	"github.com/GoCodeAlone/roster/task"
)

type contextKey int

const ctxKeyActor contextKey = 0

// WithActor attaches the authenticated actor to ctx.
func WithActor(ctx context.Context, actor task.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFrom returns the actor attached by WithActor.
func ActorFrom(ctx context.Context) (task.Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(task.Actor)
	return a, ok
}

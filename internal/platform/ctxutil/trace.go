package ctxutil

import (
	"context"
	"strings"
)

type traceDataKey struct{}
type actorKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// ActorSystem is recorded as created_by when no caller identity is attached.
const ActorSystem = "system"

func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func Actor(ctx context.Context) string {
	if ctx == nil {
		return ActorSystem
	}
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return ActorSystem
}

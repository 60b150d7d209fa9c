package ctxutil

import (
	"context"
	"testing"
)

func TestActorDefaultsToSystem(t *testing.T) {
	if got := Actor(context.Background()); got != ActorSystem {
		t.Fatalf("actor: want=%q got=%q", ActorSystem, got)
	}
	ctx := WithActor(context.Background(), "  ")
	if got := Actor(ctx); got != ActorSystem {
		t.Fatalf("blank actor: want=%q got=%q", ActorSystem, got)
	}
	ctx = WithActor(context.Background(), "ops@example")
	if got := Actor(ctx); got != "ops@example" {
		t.Fatalf("actor: want=%q got=%q", "ops@example", got)
	}
}

func TestTraceDataRoundTrip(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t", RequestID: "r"})
	td := GetTraceData(ctx)
	if td == nil || td.TraceID != "t" || td.RequestID != "r" {
		t.Fatalf("trace data: got=%+v", td)
	}
}

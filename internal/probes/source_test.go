package probes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vigil-edr/vigil/internal/bus"
	"github.com/vigil-edr/vigil/internal/events"
)

func TestJSONLSourceParsesAndForwardsEvents(t *testing.T) {
	line := `{"id":"e1","kind":"ProcessCreated","payload":{"process":{"pid":1}}}`
	src := NewJSONLSource("test", strings.NewReader(line+"\n"))
	b := bus.New[events.Event](4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Run(ctx, b); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ev, ok, err := b.Recv(ctx)
	if err != nil || !ok {
		t.Fatalf("expected event on bus, ok=%v err=%v", ok, err)
	}
	if ev.ID != "e1" || ev.Kind != events.KindProcessCreated {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestJSONLSourceSkipsMalformedLines(t *testing.T) {
	input := "not json\n" + `{"id":"e2","kind":"UserLogin"}` + "\n"
	src := NewJSONLSource("test", strings.NewReader(input))
	b := bus.New[events.Event](4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Run(ctx, b); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if b.Len() != 1 {
		t.Fatalf("expected exactly one parsed event, got %d", b.Len())
	}
}

func TestJSONLSourceAssignsIDWhenMissing(t *testing.T) {
	src := NewJSONLSource("test", strings.NewReader(`{"kind":"UserLogin"}`+"\n"))
	b := bus.New[events.Event](1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Run(ctx, b); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ev, ok, _ := b.Recv(ctx)
	if !ok || ev.ID == "" {
		t.Fatalf("expected generated id, got %+v", ev)
	}
}

func TestJSONLSourceBlocksUntilDrainedRatherThanDropping(t *testing.T) {
	input := strings.Repeat(`{"kind":"UserLogin"}`+"\n", 3)
	src := NewJSONLSource("test", strings.NewReader(input))
	b := bus.New[events.Event](1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- src.Run(ctx, b) }()

	for i := 0; i < 3; i++ {
		if _, ok, err := b.Recv(ctx); err != nil || !ok {
			t.Fatalf("recv %d: ok=%v err=%v", i, ok, err)
		}
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestJSONLSourceBlocksProducerInsteadOfDroppingOnFullBus(t *testing.T) {
	input := strings.Repeat(`{"kind":"UserLogin"}`+"\n", 2)
	src := NewJSONLSource("test", strings.NewReader(input))
	b := bus.New[events.Event](1)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := src.Run(shortCtx, b); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected the second event still blocked rather than dropped, bus len=%d", b.Len())
	}
}

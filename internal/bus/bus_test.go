package bus

import (
	"context"
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	b := New[int](2)
	ctx := context.Background()
	if err := b.Send(ctx, 7); err != nil {
		t.Fatalf("send: %v", err)
	}
	v, ok, err := b.Recv(ctx)
	if err != nil || !ok || v != 7 {
		t.Fatalf("recv = %v, %v, %v", v, ok, err)
	}
}

func TestSendBlocksWhenFullAndRespectsContext(t *testing.T) {
	b := New[int](1)
	ctx := context.Background()
	if err := b.Send(ctx, 1); err != nil {
		t.Fatalf("send: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := b.Send(cancelCtx, 2); err == nil {
		t.Fatal("expected context deadline error on full bus")
	}
}

func TestTrySendNonBlocking(t *testing.T) {
	b := New[int](1)
	if !b.TrySend(1) {
		t.Fatal("expected first TrySend to succeed")
	}
	if b.TrySend(2) {
		t.Fatal("expected second TrySend on full bus to fail")
	}
}

func TestRecvReportsClosed(t *testing.T) {
	b := New[int](1)
	b.Close()
	_, ok, err := b.Recv(context.Background())
	if ok || err != nil {
		t.Fatalf("expected closed-with-no-error recv, got ok=%v err=%v", ok, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New[int](1)
	b.Close()
	b.Close()
}

func TestLenAndCap(t *testing.T) {
	b := New[int](3)
	b.TrySend(1)
	b.TrySend(2)
	if b.Len() != 2 || b.Cap() != 3 {
		t.Fatalf("len=%d cap=%d", b.Len(), b.Cap())
	}
}

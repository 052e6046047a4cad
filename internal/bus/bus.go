// Package bus provides a bounded, generic channel wrapper used to connect
// the pipeline stages (probes, detection engine, response engine,
// telemetry sink).
package bus

import (
	"context"
	"sync"
)

// Bus is a capacity-bounded queue of T. Send blocks when full or returns
// early if ctx is cancelled; Recv blocks until an item is available, the
// bus is closed, or ctx is cancelled.
type Bus[T any] struct {
	ch        chan T
	closeOnce sync.Once
}

// New creates a Bus with the given channel capacity.
func New[T any](capacity int) *Bus[T] {
	return &Bus[T]{ch: make(chan T, capacity)}
}

// Send enqueues v, blocking if the bus is full. It returns ctx.Err() if ctx
// is cancelled before v can be enqueued.
func (b *Bus[T]) Send(ctx context.Context, v T) error {
	select {
	case b.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v without blocking, reporting whether the bus had room.
func (b *Bus[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Recv returns the next item, whether the bus is still open, and ctx.Err()
// if ctx was cancelled first.
func (b *Bus[T]) Recv(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case v, ok := <-b.ch:
		return v, ok, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Chan exposes the underlying channel for use in select statements that
// need to multiplex multiple buses (e.g. the detection engine's
// event-vs-tick loop).
func (b *Bus[T]) Chan() <-chan T {
	return b.ch
}

// Close closes the bus. Safe to call more than once.
func (b *Bus[T]) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
}

// Len reports the number of items currently queued.
func (b *Bus[T]) Len() int {
	return len(b.ch)
}

// Cap reports the bus's capacity.
func (b *Bus[T]) Cap() int {
	return cap(b.ch)
}

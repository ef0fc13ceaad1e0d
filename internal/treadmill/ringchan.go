package treadmill

import (
	"context"
	"sync/atomic"
	"time"
)

// RingChannel is a bounded FIFO buffer between a producer that must never
// block and a consumer that polls with a timeout. When the buffer is full
// the incoming value is dropped and counted; buffered values are never
// displaced.
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// NewRingChannel creates a RingChannel with the given capacity.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// TrySend inserts v without blocking. If the buffer is full the value is
// dropped, the drop is counted, and false is returned.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.metrics.addSent(1)
		return true
	default:
		rc.metrics.addDropped(1)
		return false
	}
}

// ReceiveTimeout waits up to wait for a value, returning early when ctx is
// done. ok is false on timeout or cancellation.
func (rc *RingChannel[T]) ReceiveTimeout(ctx context.Context, wait time.Duration) (v T, ok bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case v, ok = <-rc.ch:
		if ok {
			rc.metrics.addDelivered(1)
		}
		return v, ok
	case <-timer.C:
	case <-ctx.Done():
	}
	var zero T
	return zero, false
}

// Flush discards everything currently buffered and returns how many values
// were removed. Flushed values count as neither delivered nor dropped.
func (rc *RingChannel[T]) Flush() int {
	n := 0
	for {
		select {
		case <-rc.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of buffered values.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Metrics returns a snapshot of the pipeline counters.
func (rc *RingChannel[T]) Metrics() Metrics {
	return Metrics{
		Sent:      atomic.LoadInt64(&rc.metrics.Sent),
		Delivered: atomic.LoadInt64(&rc.metrics.Delivered),
		Dropped:   atomic.LoadInt64(&rc.metrics.Dropped),
	}
}

// Metrics counts values through the pipeline. All fields are updated
// atomically.
type Metrics struct {
	Sent      int64 // values accepted into the buffer
	Delivered int64 // values handed to a receiver
	Dropped   int64 // values rejected because the buffer was full
}

func (m *Metrics) addSent(n int) {
	atomic.AddInt64(&m.Sent, int64(n))
}

func (m *Metrics) addDelivered(n int) {
	atomic.AddInt64(&m.Delivered, int64(n))
}

func (m *Metrics) addDropped(n int) {
	atomic.AddInt64(&m.Dropped, int64(n))
}

package celltwin

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned by [Bus.Publish] and [Bus.Next] after the bus has
// been closed. It only surfaces during or after shutdown, never in normal
// operation.
var ErrBusClosed = errors.New("celltwin: event bus closed")

// Bus is the ordered delivery path between event producers and the single
// consuming twin. For any one producer, events are delivered in emission
// order; interleaving across producers is unordered, which is acceptable
// because the tracker validates at per-part granularity.
//
// The bus is bounded. When the consumer lags, Publish blocks the caller
// (backpressure) instead of dropping: a lost event would corrupt the counters
// and invalidate every KPI derived from them.
type Bus struct {
	ch   chan Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewBus returns a bus with the given buffer capacity. A capacity of zero
// makes every Publish rendezvous with the consumer.
func NewBus(capacity int) *Bus {
	return &Bus{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// Publish enqueues the event, blocking while the buffer is full. It returns
// ErrBusClosed once the bus is closed and ctx.Err() if the context is
// cancelled first. A published event is delivered whole or not at all.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	// Closing wins over a ready buffer slot so producers observe shutdown
	// promptly.
	select {
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case b.ch <- e:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next pending event, blocking while none is pending. After
// Close, Next keeps returning buffered events until the bus is drained, then
// returns ErrBusClosed; the consume loop exits cleanly without losing events.
func (b *Bus) Next(ctx context.Context) (Event, error) {
	// Pending events take priority over the close signal so a closed bus is
	// always drained first.
	select {
	case e := <-b.ch:
		return e, nil
	default:
	}
	select {
	case e := <-b.ch:
		return e, nil
	case <-b.done:
		select {
		case e := <-b.ch:
			return e, nil
		default:
			return Event{}, ErrBusClosed
		}
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close signals shutdown to all pending and future Publish and Next calls.
// Close is idempotent and safe to call from any goroutine.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

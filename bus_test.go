package celltwin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestBusPreservesPerProducerOrder(t *testing.T) {
	const producers = 4
	const perProducer = 100

	bus := NewBus(8)
	ctx := context.Background()

	// Each producer emits a strictly increasing sequence tagged with its own
	// part id, concurrently with the others.
	g, ctx := errgroup.WithContext(ctx)
	for p := 0; p < producers; p++ {
		id := PartID(fmt.Sprintf("P%d", p))
		g.Go(func() error {
			for seq := 0; seq < perProducer; seq++ {
				e := Event{Kind: KindPartArrived, PartID: id, Timestamp: time.Unix(int64(seq), 0)}
				if err := bus.Publish(ctx, e); err != nil {
					return err
				}
			}
			return nil
		})
	}

	received := make(map[PartID]int64)
	for i := 0; i < producers*perProducer; i++ {
		e, err := bus.Next(ctx)
		if err != nil {
			t.Fatal("Next()", err)
		}
		seq := e.Timestamp.Unix()
		if last, ok := received[e.PartID]; ok && seq != last+1 {
			t.Fatalf("producer %v delivered out of order: %v after %v", e.PartID, seq, last)
		}
		received[e.PartID] = seq
	}

	if err := g.Wait(); err != nil {
		t.Fatal("producers failed:", err)
	}
}

func TestBusBackpressure(t *testing.T) {
	bus := NewBus(1)
	ctx := context.Background()

	if err := bus.Publish(ctx, Event{Kind: KindPartArrived, PartID: "A"}); err != nil {
		t.Fatal("Publish(first)", err)
	}

	// The second publish must block (not drop) while the buffer is full.
	blocked := make(chan error, 1)
	go func() {
		blocked <- bus.Publish(ctx, Event{Kind: KindPartArrived, PartID: "B"})
	}()

	select {
	case err := <-blocked:
		t.Fatalf("Publish(second) returned %v before the consumer drained", err)
	case <-time.After(50 * time.Millisecond):
	}

	for _, want := range []PartID{"A", "B"} {
		e, err := bus.Next(ctx)
		if err != nil {
			t.Fatal("Next()", err)
		}
		if e.PartID != want {
			t.Fatalf("Next() = %v, want %v", e.PartID, want)
		}
	}

	if err := <-blocked; err != nil {
		t.Fatal("Publish(second)", err)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus(4)
	ctx := context.Background()

	if err := bus.Publish(ctx, Event{Kind: KindPartArrived, PartID: "A"}); err != nil {
		t.Fatal("Publish()", err)
	}
	bus.Close()
	bus.Close() // idempotent

	if err := bus.Publish(ctx, Event{Kind: KindPartArrived, PartID: "B"}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish() after Close = %v, want ErrBusClosed", err)
	}

	// Pending events are drained before the closed error surfaces: nothing
	// published before shutdown is ever lost.
	e, err := bus.Next(ctx)
	if err != nil {
		t.Fatal("Next() after Close", err)
	}
	if e.PartID != "A" {
		t.Errorf("Next() = %v, want A", e.PartID)
	}

	if _, err := bus.Next(ctx); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Next() on drained closed bus = %v, want ErrBusClosed", err)
	}
}

func TestBusUnblocksOnContextCancel(t *testing.T) {
	bus := NewBus(0)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan error, 1)
	go func() {
		_, err := bus.Next(ctx)
		got <- err
	}()

	cancel()
	select {
	case err := <-got:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after cancellation")
	}
}

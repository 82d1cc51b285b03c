package celltwin

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// CellStateChanged notifies that the cell-state machine took a transition.
// Dashboards subscribe to these instead of polling the read queries.
//
// The time is taken from the twin's clock at the moment of the transition.
// The information in this message is accurate up to that timestamp, not a
// moment afterwards.
type CellStateChanged struct {
	From      CellState
	To        CellState
	Timestamp time.Time
}

// PublishTransitions returns a component.Proc that drains the twin's pending
// cell-state transitions and publishes each as a gob-encoded
// [CellStateChanged] message to the sink.
//
// Transitions that queued up while the publisher was busy are sent as one
// concurrent batch; ordering across a batch is preserved by the Timestamp
// field, not by delivery order. Notifications are advisory - the twin's read
// queries remain the authoritative view - so a failed send is logged and the
// proc moves on rather than wedging the twin.
func (t *Twin) PublishTransitions(sink *pubsub.Topic) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			var first CellStateChanged
			select {
			case first = <-t.transitions:
			case <-l.Context().Done():
				return
			}

			batch := []CellStateChanged{first}
		drain:
			for {
				select {
				case n := <-t.transitions:
					batch = append(batch, n)
				default:
					break drain
				}
			}

			g, ctx := errgroup.WithContext(l.GraceContext())
			for _, n := range batch {
				g.Go(func() error {
					return publishTransition(ctx, sink, n)
				})
			}
			if err := g.Wait(); err != nil {
				logger.Error("Couldn't publish cell-state change", "error", err)
			}
		}
	}
}

// publishTransition encodes and sends a single CellStateChanged message. The
// destination cell state is included as metadata on the message to enable
// key-based partitioning on brokers that support it.
func publishTransition(ctx context.Context, sink *pubsub.Topic, n CellStateChanged) error {
	ctx, span := tracer.Start(ctx, "celltwin.publishTransition", trace.WithAttributes(
		attribute.String(transitionFromAttr, string(n.From)),
		attribute.String(transitionToAttr, string(n.To)),
	))
	defer span.End()

	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(n); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	msg := &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{"cellState": string(n.To)}}
	if err := sink.Send(ctx, msg); err != nil {
		err := fmt.Errorf("send: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

package celltwin

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// IngestEvents returns a component.Proc that bridges an external producer
// onto the bus: it continuously receives gob-encoded [Event] messages from
// the subscription, validates them, and publishes them to the bus.
//
// Per-producer ordering is preserved as long as the broker preserves it
// (key-partitioned brokers should key messages by part id). Malformed
// messages are logged and dropped at this boundary; they never reach the
// tracker.
func IngestEvents(bus *Bus, sub *pubsub.Subscription) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			msg, err := sub.Receive(l.GraceContext())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// we're shutting down
					return
				}
				l.Fatal(fmt.Errorf("receive: %w", err))
			}
			// always ack, even if we fail to decode.
			// otherwise, we might get stuck processing
			// the same failed message
			msg.Ack()

			e, err := decodeEvent(msg.Body)
			if err != nil {
				logger.Warn("Dropping undecodable event message",
					slog.String("msg.id", msg.LoggableID),
					slog.Any("error", err),
				)
				continue
			}

			if err := bus.Publish(l.GraceContext(), e); err != nil {
				// A closed bus means the twin is shutting down; in-flight
				// emissions are dropped without error (no counter guarantees
				// apply post-shutdown).
				if errors.Is(err, ErrBusClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				l.Fatal(fmt.Errorf("publish: %w", err))
			}
		}
	}
}

// decodeEvent deserialises one gob-encoded event and classifies malformed
// input that cannot be interpreted as an Event at all.
func decodeEvent(p []byte) (Event, error) {
	var e Event
	if err := gob.NewDecoder(bytes.NewReader(p)).Decode(&e); err != nil {
		return Event{}, fmt.Errorf("decode gob: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("validate: %w", err)
	}
	return e, nil
}

// encodeEvent serialises an event for transport. It is the producer-side
// counterpart of decodeEvent.
func encodeEvent(e Event) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(e); err != nil {
		return nil, fmt.Errorf("encode gob: %w", err)
	}
	return b.Bytes(), nil
}

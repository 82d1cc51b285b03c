// Package celltwin provides a digital twin of an automated sorting cell; the
// twin is a virtual representation of the physical cell - maintained by
// digesting its lifecycle event-stream in order to produce a consistent,
// queryable view of the parts moving through it.
//
// The twin tracks each part along a strict lifecycle (created, on the
// conveyor, at the sensor, ready to sort, sorted ok/nok), detects two classes
// of anomaly - a stalled process (no accepted events within a threshold) and
// an invalid event ordering - and derives rolling performance indicators
// (throughput, reject rate) from its counters.
//
// Events reach the twin through a [Bus], an ordered in-process delivery path
// with blocking backpressure. Producers in other processes publish
// gob-encoded events to a pubsub topic and [IngestEvents] bridges them onto
// the bus. Cell-state transitions flow the other way through
// [Twin.PublishTransitions].
package celltwin

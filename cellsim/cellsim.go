/*
Package cellsim simulates a physical sorting cell: parts arrive on a conveyor
at random intervals, a sensor evaluates each part as ok or nok, and an
actuator routes it to the matching bin. The simulator publishes the four
lifecycle events of each part to a [celltwin.Bus], playing the role of the
physical system for a [celltwin.Twin].

Each part in flight is an independent producer: its events are published in
emission order, while events of different parts interleave arbitrarily -
exactly the ordering contract the twin's bus promises.
*/
package cellsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/danielorbach/go-component"

	"github.com/go-digitaltwin/celltwin"
)

// A Delay is a uniform random delay range the simulator draws from.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Config holds the timing and quality parameters of the simulated cell.
type Config struct {
	// PartInterarrival is the delay between consecutive part arrivals.
	PartInterarrival Delay
	// SensorDelay is how long the sensor takes to evaluate a part.
	SensorDelay Delay
	// ActuatorDelay is how long the actuator takes to route a part.
	ActuatorDelay Delay
	// OKProbability is the chance a part passes inspection, in [0, 1].
	OKProbability float64
}

// DefaultConfig describes a demo cell: roughly one part per second with
// sub-second processing stages and an 80% pass rate.
func DefaultConfig() Config {
	return Config{
		PartInterarrival: Delay{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		SensorDelay:      Delay{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		ActuatorDelay:    Delay{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond},
		OKProbability:    0.8,
	}
}

// Simulator produces the lifecycle event stream of a simulated sorting cell.
type Simulator struct {
	bus     *celltwin.Bus
	cfg     Config
	rng     *rand.Rand
	counter int
}

// New returns a simulator publishing to the given bus. The seed makes the
// arrival sequence and quality verdicts reproducible.
func New(bus *celltwin.Bus, cfg Config, seed int64) *Simulator {
	return &Simulator{
		bus: bus,
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// plan is everything a part's processing needs, drawn upfront on the arrival
// loop so the per-part goroutines never touch the shared rng.
type plan struct {
	id            celltwin.PartID
	ok            bool
	sensorDelay   time.Duration
	actuatorDelay time.Duration
}

// Run returns a component.Proc that generates part arrivals at random
// intervals and spawns an independent producer for each part's remaining
// lifecycle.
//
// Publish failures during shutdown are dropped silently: the twin makes no
// counter guarantees post-shutdown.
func (s *Simulator) Run() component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			if !sleep(l.Context(), s.draw(s.cfg.PartInterarrival)) {
				return
			}

			p := plan{
				id:            celltwin.PartID(fmt.Sprintf("P%d", s.counter)),
				ok:            s.rng.Float64() < s.cfg.OKProbability,
				sensorDelay:   s.draw(s.cfg.SensorDelay),
				actuatorDelay: s.draw(s.cfg.ActuatorDelay),
			}
			s.counter++

			logger.Info("Part arrived", slog.String("part", string(p.id)))
			arrival := celltwin.Event{Kind: celltwin.KindPartArrived, PartID: p.id, Timestamp: time.Now()}
			if err := s.bus.Publish(l.GraceContext(), arrival); err != nil {
				return
			}

			l.Go("part "+string(p.id), func(l *component.L) {
				if err := s.processPart(l.Context(), p); err != nil && !shuttingDown(err) {
					l.Fatal(fmt.Errorf("process part %s: %w", p.id, err))
				}
			})
		}
	}
}

// processPart publishes the sensor, actuator and sorted events of one part,
// in order, with the planned delays in between.
func (s *Simulator) processPart(ctx context.Context, p plan) error {
	result := celltwin.OutcomeOK
	decision := celltwin.BinOK
	if !p.ok {
		result = celltwin.OutcomeNOK
		decision = celltwin.BinReject
	}

	if !sleep(ctx, p.sensorDelay) {
		return ctx.Err()
	}
	err := s.bus.Publish(ctx, celltwin.Event{
		Kind:      celltwin.KindSensorRead,
		PartID:    p.id,
		Result:    result,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	if !sleep(ctx, p.actuatorDelay) {
		return ctx.Err()
	}
	err = s.bus.Publish(ctx, celltwin.Event{
		Kind:      celltwin.KindActuatorTriggered,
		PartID:    p.id,
		Decision:  decision,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	return s.bus.Publish(ctx, celltwin.Event{
		Kind:      celltwin.KindPartSorted,
		PartID:    p.id,
		Result:    result,
		Timestamp: time.Now(),
	})
}

func (s *Simulator) draw(d Delay) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(s.rng.Int63n(int64(d.Max-d.Min)))
}

// sleep waits for d or until the context is done, reporting whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func shuttingDown(err error) bool {
	return errors.Is(err, celltwin.ErrBusClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Command celltwin runs the digital twin of an automated sorting cell: it
// consumes lifecycle events (from the built-in simulator and/or an external
// pubsub subscription), maintains the synchronized cell model, watches for
// stalls, and serves the read-only HTTP API for dashboards.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/peterbourgon/ff/v3"
	"gocloud.dev/pubsub"

	// Link the in-memory pubsub driver so broker-less runs can still wire the
	// notifier and ingress with mem:// URLs.
	_ "gocloud.dev/pubsub/mempubsub"

	"github.com/go-digitaltwin/celltwin"
	"github.com/go-digitaltwin/celltwin/cellsim"
	"github.com/go-digitaltwin/celltwin/config"
	"github.com/go-digitaltwin/celltwin/httpapi"
)

func main() {
	fs := flag.NewFlagSet("celltwin", flag.ExitOnError)
	var (
		configPath = fs.String("config", "config.yaml", "path to the YAML configuration file")
		eventsSub  = fs.String("events-subscription", "", "pubsub subscription URL to ingest external events from (empty disables ingress)")
		stateTopic = fs.String("state-topic", "", "pubsub topic URL to publish cell-state changes to (empty disables the notifier)")
		simulate   = fs.Bool("simulate", true, "run the built-in sorting-cell simulator")
		seed       = fs.Int64("seed", time.Now().UnixNano(), "random seed for the simulator")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("CELLTWIN")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A broken config file degrades to the defaults instead of refusing
		// to start.
		slog.Warn("Falling back to the default configuration", slog.Any("error", err))
	}

	component.RunProc(run(cfg, options{
		eventsSubURL:  *eventsSub,
		stateTopicURL: *stateTopic,
		simulate:      *simulate,
		seed:          *seed,
	}))
}

type options struct {
	eventsSubURL  string
	stateTopicURL string
	simulate      bool
	seed          int64
}

// busCapacity bounds the event channel. Producers block (backpressure) when
// the twin lags this far behind; events are never dropped.
const busCapacity = 64

func run(cfg config.Config, opts options) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())

		bus := celltwin.NewBus(busCapacity)
		twin := celltwin.NewTwin(cfg.BlockedThreshold())

		l.Fork("twin", twin.Run(bus))
		l.Fork("stall-monitor", twin.Monitor(monitorInterval(cfg.BlockedThreshold())))
		l.Fork("api", httpapi.Serve(cfg.API.Addr, twin))

		if opts.stateTopicURL != "" {
			logger.Debug("Opening cell-state topic...", slog.String("topic-url", opts.stateTopicURL))
			topic, err := pubsub.OpenTopic(l.GraceContext(), opts.stateTopicURL)
			if err != nil {
				l.Fatal(fmt.Errorf("open topic %q: %w", opts.stateTopicURL, err))
			}
			l.CleanupContext(topic.Shutdown)
			l.Fork("state-notifier", twin.PublishTransitions(topic))
		}

		if opts.eventsSubURL != "" {
			logger.Debug("Opening events subscription...", slog.String("subscription-url", opts.eventsSubURL))
			sub, err := pubsub.OpenSubscription(l.GraceContext(), opts.eventsSubURL)
			if err != nil {
				l.Fatal(fmt.Errorf("open subscription %q: %w", opts.eventsSubURL, err))
			}
			l.CleanupBackground(sub.Shutdown)
			l.Fork("ingest", celltwin.IngestEvents(bus, sub))
		}

		if opts.simulate {
			simMin, simMax := config.Seconds(cfg.Simulation.PartInterarrival)
			senMin, senMax := config.Seconds(cfg.Simulation.SensorDelay)
			actMin, actMax := config.Seconds(cfg.Simulation.ActuatorDelay)
			sim := cellsim.New(bus, cellsim.Config{
				PartInterarrival: cellsim.Delay{Min: simMin, Max: simMax},
				SensorDelay:      cellsim.Delay{Min: senMin, Max: senMax},
				ActuatorDelay:    cellsim.Delay{Min: actMin, Max: actMax},
				OKProbability:    cfg.Simulation.OKProbability,
			}, opts.seed)
			l.Fork("simulator", sim.Run())
		}

		logger.Info("Sorting-cell digital twin started",
			slog.Duration("blocked-threshold", cfg.BlockedThreshold()),
			slog.String("api-addr", cfg.API.Addr),
			slog.Bool("simulate", opts.simulate),
		)
	}
}

// monitorInterval picks the stall-check period: a fraction of the threshold,
// capped at one second so short thresholds are still detected promptly.
func monitorInterval(threshold time.Duration) time.Duration {
	interval := threshold / 5
	if interval > time.Second {
		interval = time.Second
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

package app

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/canteen/pkg"
	"github.com/appetiteclub/canteen/pkg/clock"
	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/appetiteclub/canteen/services/relay/internal/events"
	"github.com/appetiteclub/canteen/services/relay/internal/relay"
)

const (
	AppName    = "relay"
	AppVersion = "0.1.0"

	defaultNATSURL = "nats://localhost:4222"
	streamName     = "RELAY_EVENTS"
	streamMaxAge   = 24 * time.Hour
)

// App encapsulates the relay service application
type App struct {
	config  *apt.Config
	logger  apt.Logger
	options []apt.Option

	settings relay.Settings
	hub      *relay.Hub
	server   *relay.Server
}

// New creates a new relay service application
func New(config *apt.Config, logger apt.Logger) (*App, error) {
	settings, err := relay.LoadSettings(config, os.Getenv)
	if err != nil {
		return nil, err
	}
	return &App{
		config:   config,
		logger:   logger,
		settings: settings,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	state := relay.NewState(clock.Real(a.settings.Location))

	var lifecycles []interface{}
	var sink relay.Sink

	var publisher aptevents.Publisher
	var subscriber *pkg.NATSSubscriber

	if a.enabled("nats.enabled") {
		natsURL := a.config.GetStringOrDef("nats.url", defaultNATSURL)

		if a.enabled("nats.stream.enabled") {
			stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
				URL:        natsURL,
				Name:       AppName,
				StreamName: streamName,
				Subjects:   []string{event.RelayTicketsTopic, event.RelaySalesTopic},
				MaxAge:     streamMaxAge,
			})
			if err != nil {
				return err
			}
			a.logger.Info("NATS stream initialized for relay mirror", "stream", streamName)
			publisher = stream
			lifecycles = append(lifecycles, apt.LifecycleHooks{
				OnStop: func(context.Context) error { return stream.Close() },
			})
		} else {
			natsPublisher, err := pkg.NewNATSPublisher(natsURL, AppName)
			if err != nil {
				return err
			}
			publisher = natsPublisher
			lifecycles = append(lifecycles, apt.LifecycleHooks{
				OnStop: func(context.Context) error { return natsPublisher.Close() },
			})
		}

		var err error
		subscriber, err = pkg.NewNATSSubscriber(natsURL, AppName, a.logger)
		if err != nil {
			return err
		}
	}

	var mirror *relay.Mirror
	if publisher != nil {
		mirror = relay.NewMirror(publisher, 0, a.logger)
		sink = mirror
	}

	a.hub = relay.NewHub(state, sink, a.logger)

	handler := relay.NewHandler(relay.HandlerDeps{
		Hub:      a.hub,
		Settings: a.settings,
	}, a.logger)

	a.server = relay.NewServer(a.settings, handler.Router(), func(err error) {
		log.Fatalf("%s(%s) listener failed: %v", AppName, AppVersion, err)
	}, a.logger)

	// Start order: bus, mirror, hub, listener.
	if mirror != nil {
		lifecycles = append(lifecycles, mirror)
	}
	lifecycles = append(lifecycles, a.hub, a.server)

	if subscriber != nil {
		topic := a.config.GetStringOrDef("nats.inbound.topic", event.RelayInboundTopic)
		inbound := events.NewInboundSubscriber(subscriber, a.hub, topic, a.logger)
		lifecycles = append(lifecycles, inbound, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return subscriber.Close() },
		})
	}

	if a.enabled("seed.demo.enabled") {
		a.logger.Info("Demo seeding enabled for relay service")
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStart: relay.DemoSeedingFunc(a.hub, a.logger),
		})
	}

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithLifecycle(lifecycles...),
	}

	if a.enabled("grpc.enabled") {
		streamServer := relay.NewStreamServer(a.hub, a.settings.SendBuffer, a.logger)
		options = append(options, apt.WithGRPCServerModules("grpc.port", streamServer))
	}

	a.options = options
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	ms := apt.NewMicro(a.options...)
	if err := ms.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

func (a *App) enabled(key string) bool {
	return a.config.GetStringOrDef(key, "false") == "true"
}

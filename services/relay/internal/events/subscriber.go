package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/canteen/pkg/event"
)

// Submitter accepts producer frames; the relay hub implements it.
type Submitter interface {
	Submit(ctx context.Context, origin string, frame []byte) error
}

// InboundSubscriber feeds envelopes published on the bus into the relay,
// for producers that run server-side instead of holding a socket.
type InboundSubscriber struct {
	subscriber events.Subscriber
	relay      Submitter
	topic      string
	logger     apt.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewInboundSubscriber(subscriber events.Subscriber, relay Submitter, topic string, logger apt.Logger) *InboundSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if topic == "" {
		topic = event.RelayInboundTopic
	}
	return &InboundSubscriber{
		subscriber: subscriber,
		relay:      relay,
		topic:      topic,
		logger:     logger,
	}
}

func (s *InboundSubscriber) Start(ctx context.Context) error {
	if s.subscriber == nil || s.relay == nil {
		return fmt.Errorf("inbound subscriber not configured")
	}

	s.logger.Info("starting inbound subscriber", "topic", s.topic)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.subscriber.Subscribe(runCtx, s.topic, s.handleEvent); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	return nil
}

func (s *InboundSubscriber) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

// handleEvent never reports validation problems: the hub drops invalid
// frames silently, exactly as it does for socket clients.
func (s *InboundSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	if err := s.relay.Submit(ctx, "bus:"+s.topic, msg); err != nil {
		s.logger.Debug("inbound frame not submitted", "topic", s.topic, "error", err)
	}
	return nil
}

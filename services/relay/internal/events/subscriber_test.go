package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/canteen/pkg/event"
)

// MockSubscriber implements events.Subscriber for testing
type MockSubscriber struct {
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error

	mu      sync.Mutex
	topic   string
	handler events.HandlerFunc
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topic = topic
	m.handler = func(_ context.Context, msg []byte) error { return handler(ctx, msg) }
	return nil
}

func (m *MockSubscriber) Deliver(msg []byte) error {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	return handler(context.Background(), msg)
}

// MockSubmitter records submitted frames
type MockSubmitter struct {
	SubmitFunc func(ctx context.Context, origin string, frame []byte) error

	mu      sync.Mutex
	origins []string
	frames  [][]byte
}

func (m *MockSubmitter) Submit(ctx context.Context, origin string, frame []byte) error {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, origin, frame)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.origins = append(m.origins, origin)
	m.frames = append(m.frames, frame)
	return nil
}

func TestNewInboundSubscriber(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		wantTopic string
	}{
		{name: "withDefaultTopic", topic: "", wantTopic: event.RelayInboundTopic},
		{name: "withCustomTopic", topic: "pos.events", wantTopic: "pos.events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := NewInboundSubscriber(&MockSubscriber{}, &MockSubmitter{}, tt.topic, nil)
			if sub == nil {
				t.Fatal("NewInboundSubscriber() returned nil")
			}
			if sub.logger == nil {
				t.Error("NewInboundSubscriber() should set noop logger when nil")
			}
			if sub.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", sub.topic, tt.wantTopic)
			}
		})
	}
}

func TestInboundSubscriberStartNotConfigured(t *testing.T) {
	sub := NewInboundSubscriber(nil, nil, "", apt.NewNoopLogger())

	err := sub.Start(context.Background())
	if err == nil {
		t.Fatal("Start() with nil subscriber should return error")
	}

	expectedMsg := "inbound subscriber not configured"
	if err.Error() != expectedMsg {
		t.Errorf("Start() error = %q, want %q", err.Error(), expectedMsg)
	}
}

func TestInboundSubscriberStartSubscribeError(t *testing.T) {
	mock := &MockSubscriber{
		SubscribeFunc: func(ctx context.Context, topic string, handler events.HandlerFunc) error {
			return errors.New("nats down")
		},
	}
	sub := NewInboundSubscriber(mock, &MockSubmitter{}, "", apt.NewNoopLogger())

	if err := sub.Start(context.Background()); err == nil {
		t.Error("Start() should propagate subscribe errors")
	}
}

func TestInboundSubscriberForwardsFrames(t *testing.T) {
	mock := &MockSubscriber{}
	submitter := &MockSubmitter{}
	sub := NewInboundSubscriber(mock, submitter, "", apt.NewNoopLogger())

	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sub.Stop(context.Background())

	if mock.topic != event.RelayInboundTopic {
		t.Errorf("subscribed topic = %q, want %q", mock.topic, event.RelayInboundTopic)
	}

	frame := []byte(`{"type":"NEW_SALE","payload":{}}`)
	if err := mock.Deliver(frame); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(submitter.frames) != 1 {
		t.Fatalf("submitted frames = %d, want 1", len(submitter.frames))
	}
	if string(submitter.frames[0]) != string(frame) {
		t.Errorf("submitted frame = %s, want %s", submitter.frames[0], frame)
	}
	if submitter.origins[0] != "bus:"+event.RelayInboundTopic {
		t.Errorf("origin = %q", submitter.origins[0])
	}
}

func TestInboundSubscriberSwallowsSubmitErrors(t *testing.T) {
	mock := &MockSubscriber{}
	submitter := &MockSubmitter{
		SubmitFunc: func(ctx context.Context, origin string, frame []byte) error {
			return errors.New("hub stopped")
		},
	}
	sub := NewInboundSubscriber(mock, submitter, "", apt.NewNoopLogger())

	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := mock.Deliver([]byte(`garbage`)); err != nil {
		t.Errorf("handler error = %v, want nil", err)
	}
}

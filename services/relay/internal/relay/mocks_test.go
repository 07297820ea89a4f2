package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/canteen/pkg/clock"
	"github.com/appetiteclub/canteen/pkg/event"
)

// MockClient records every frame the hub sends it.
type MockClient struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
	notify chan struct{}
}

func NewMockClient(id string) *MockClient {
	return &MockClient{id: id, notify: make(chan struct{}, 1024)}
}

func (m *MockClient) ID() string {
	return m.id
}

func (m *MockClient) Send(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.full {
		return false
	}
	m.frames = append(m.frames, frame)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockClient) SetFull(full bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.full = full
}

func (m *MockClient) Envelopes() []event.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]event.Envelope, 0, len(m.frames))
	for _, f := range m.frames {
		var env event.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			result = append(result, env)
		}
	}
	return result
}

func (m *MockClient) Types() []string {
	var types []string
	for _, env := range m.Envelopes() {
		types = append(types, env.Type)
	}
	return types
}

// MockSink records mirrored frames.
type MockSink struct {
	mu     sync.Mutex
	types  []string
	frames [][]byte
}

func (m *MockSink) Publish(msgType string, frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, msgType)
	m.frames = append(m.frames, frame)
}

func (m *MockSink) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.types...)
}

// MockPublisher is an events.Publisher that records published messages.
type MockPublisher struct {
	mu          sync.Mutex
	published   []publishedMsg
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type publishedMsg struct {
	topic string
	msg   []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{topic: topic, msg: msg})
	return nil
}

func (m *MockPublisher) Published() []publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMsg(nil), m.published...)
}

// MockConfig is a map-backed ConfigReader.
type MockConfig map[string]string

func (m MockConfig) GetStringOrDef(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

var testNow = time.Date(2024, 5, 17, 12, 30, 0, 0, time.UTC)

func newTestClock() *clock.Fake {
	return clock.NewFake(testNow, time.UTC)
}

func startHub(t *testing.T, state *State, sink Sink) *Hub {
	t.Helper()
	hub := NewHub(state, sink, nil)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Stop(ctx)
	})
	return hub
}

func frame(t *testing.T, msgType string, payload string) []byte {
	t.Helper()
	b, err := json.Marshal(event.Envelope{Type: msgType, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("cannot build frame: %v", err)
	}
	return b
}

// syncHub waits until every frame submitted before it was handled by the hub.
func syncHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := hub.ConnectionCount(ctx); err != nil {
		t.Fatalf("hub sync failed: %v", err)
	}
}

func activeTicket(s *State, id string) (Ticket, bool) {
	for _, ticket := range s.Tickets() {
		if ticket.ID == id {
			return ticket, true
		}
	}
	return Ticket{}, false
}

package commands

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/appetiteclub/canteen/pkg/relaystream"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
)

type MockConfig map[string]string

func (m MockConfig) GetStringOrDef(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// MockRelay is a socket endpoint that greets with the given frames and
// forwards whatever it receives to got.
type MockRelay struct {
	server *httptest.Server
	got    chan string
}

func NewMockRelay(t *testing.T, greeting ...string) *MockRelay {
	t.Helper()
	m := &MockRelay{got: make(chan string, 16)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, g := range greeting {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(g))
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			m.got <- string(data)
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *MockRelay) URL() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

// MockStream serves a fixed list of envelopes on the gRPC stream.
type MockStream struct {
	frames []event.Envelope

	mu  sync.Mutex
	req *relaystream.SubscribeRequest
}

func (m *MockStream) Request() *relaystream.SubscribeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req
}

func (m *MockStream) Subscribe(req *relaystream.SubscribeRequest, stream grpc.ServerStream) error {
	m.mu.Lock()
	m.req = req
	m.mu.Unlock()
	for _, f := range m.frames {
		if !req.Wants(f.Type) {
			continue
		}
		if err := stream.SendMsg(f); err != nil {
			return err
		}
	}
	return nil
}

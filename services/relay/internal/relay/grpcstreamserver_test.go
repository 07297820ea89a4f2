package relay

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/appetiteclub/canteen/pkg/relaystream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startStreamServer(t *testing.T, hub *Hub) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	NewStreamServer(hub, 16, nil).RegisterGRPCService(server)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewStreamServer(t *testing.T) {
	s := NewStreamServer(NewHub(nil, nil, nil), 0, nil)
	if s.sendBuffer != defaultSendBuffer {
		t.Errorf("sendBuffer = %d, want %d", s.sendBuffer, defaultSendBuffer)
	}
	if s.logger == nil {
		t.Error("logger is nil")
	}
}

func TestStreamServerSubscribe(t *testing.T) {
	state := NewState(newTestClock())
	state.ApplyNewOrder(json.RawMessage(`{"id":"a","receiptNo":1,"items":[]}`))
	hub := startHub(t, state, nil)
	conn := startStreamServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sub, err := relaystream.Subscribe(ctx, conn, nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	first, err := sub.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if first.Type != event.TypeOrderSnapshot {
		t.Fatalf("first frame = %s, want ORDER_SNAPSHOT", first.Type)
	}
	second, err := sub.Recv()
	if err != nil || second.Type != event.TypeSalesSnapshot {
		t.Fatalf("second frame = %s (%v), want SALES_SNAPSHOT", second.Type, err)
	}

	f := `{"type":"NEW_SALE","payload":{"id":"s1","receiptNo":1,"waiterName":"Ana","total":2}}`
	if err := hub.Submit(ctx, "test", []byte(f)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	next, err := sub.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if next.Type != event.TypeNewSale {
		t.Errorf("frame = %s, want NEW_SALE", next.Type)
	}
}

func TestStreamServerSubscribeFiltersTypes(t *testing.T) {
	hub := startHub(t, NewState(newTestClock()), nil)
	conn := startStreamServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req := &relaystream.SubscribeRequest{Types: []string{event.TypeNewOrder}}
	sub, err := relaystream.Subscribe(ctx, conn, req)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// The subscriber is registered once the hub counts it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := hub.ConnectionCount(ctx); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	frames := []string{
		`{"type":"NEW_SALE","payload":{"id":"s1","receiptNo":1,"waiterName":"Ana","total":2}}`,
		`{"type":"NEW_ORDER","payload":{"id":"t1","receiptNo":1,"items":[]}}`,
	}
	for _, f := range frames {
		if err := hub.Submit(ctx, "test", []byte(f)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	env, err := sub.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if env.Type != event.TypeNewOrder {
		t.Errorf("frame = %s, want NEW_ORDER only", env.Type)
	}
}

func TestStreamClientSendAfterClose(t *testing.T) {
	c := newStreamClient("c1", 1)
	if !c.Send([]byte("a")) {
		t.Error("Send() = false, want true")
	}
	if c.Send([]byte("b")) {
		t.Error("Send() on full queue = true, want false")
	}
	c.Close()
	c.Close()
	if c.Send([]byte("c")) {
		t.Error("Send() after Close = true, want false")
	}
}

func TestSubscribeRequestWants(t *testing.T) {
	tests := []struct {
		name string
		req  *relaystream.SubscribeRequest
		typ  string
		want bool
	}{
		{name: "nilRequest", req: nil, typ: event.TypeNewSale, want: true},
		{name: "emptyFilter", req: &relaystream.SubscribeRequest{}, typ: event.TypeNewSale, want: true},
		{name: "matching", req: &relaystream.SubscribeRequest{Types: []string{event.TypeNewSale}}, typ: event.TypeNewSale, want: true},
		{name: "notMatching", req: &relaystream.SubscribeRequest{Types: []string{event.TypeNewOrder}}, typ: event.TypeNewSale, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Wants(tt.typ); got != tt.want {
				t.Errorf("Wants() = %v, want %v", got, tt.want)
			}
		})
	}
}

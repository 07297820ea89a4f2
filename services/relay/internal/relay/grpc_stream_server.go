package relay

import (
	"encoding/json"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/relaystream"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// StreamServer exposes the hub's fan-out over gRPC. A subscriber is just
// another hub client: it gets both snapshots first, then every broadcast.
type StreamServer struct {
	hub        *Hub
	sendBuffer int
	logger     apt.Logger
}

func NewStreamServer(hub *Hub, sendBuffer int, logger apt.Logger) *StreamServer {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &StreamServer{
		hub:        hub,
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// RegisterGRPCService registers this service with the gRPC server.
func (s *StreamServer) RegisterGRPCService(server *grpc.Server) {
	relaystream.Register(server, s)
}

func (s *StreamServer) Subscribe(req *relaystream.SubscribeRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	client := newStreamClient("grpc-"+uuid.NewString(), s.sendBuffer)

	if err := s.hub.Register(ctx, client); err != nil {
		client.Close()
		return err
	}
	defer func() {
		s.hub.Unregister(client.ID())
		client.Close()
	}()

	s.logger.Info("stream subscriber connected", "client_id", client.ID(), "types", req.Types)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-client.send:
			if !ok {
				return nil
			}
			if !req.Wants(frameType(frame)) {
				continue
			}
			if err := stream.SendMsg(json.RawMessage(frame)); err != nil {
				s.logger.Debug("stream send failed", "client_id", client.ID(), "error", err)
				return err
			}
		}
	}
}

type streamClient struct {
	id string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newStreamClient(id string, buffer int) *streamClient {
	return &streamClient{id: id, send: make(chan []byte, buffer)}
}

func (c *streamClient) ID() string {
	return c.id
}

func (c *streamClient) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *streamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Package relaystream describes the relay's gRPC fan-out stream. Frames are
// the same JSON envelopes the WebSocket clients receive, carried with a
// JSON codec so no generated protobuf code is involved.
package relaystream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/canteen/pkg/event"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	// DefaultPort is where the relay serves the stream when grpc.port is
	// unset, the port apt's gRPC runner falls back to.
	DefaultPort = "50051"
	DefaultAddr = "localhost:" + DefaultPort

	ServiceName         = "relay.v1.RelayStream"
	SubscribeMethod     = "Subscribe"
	FullSubscribeMethod = "/" + ServiceName + "/" + SubscribeMethod
)

// SubscribeRequest optionally restricts the stream to some message types.
// An empty Types list receives everything.
type SubscribeRequest struct {
	Types []string `json:"types,omitempty"`
}

// Wants reports whether frames of msgType pass the filter.
func (r *SubscribeRequest) Wants(msgType string) bool {
	if r == nil || len(r.Types) == 0 {
		return true
	}
	for _, t := range r.Types {
		if t == msgType {
			return true
		}
	}
	return false
}

// Server is implemented by the relay's stream service.
type Server interface {
	Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    SubscribeMethod,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "relay/v1/stream",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Server).Subscribe(req, stream)
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

// Subscription is the client side of an open stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens the stream on conn.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, req *SubscribeRequest) (*Subscription, error) {
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], FullSubscribeMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fmt.Errorf("cannot open relay stream: %w", err)
	}
	if req == nil {
		req = &SubscribeRequest{}
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("cannot send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("cannot close subscribe request: %w", err)
	}
	return &Subscription{stream: stream}, nil
}

// Recv blocks for the next frame.
func (s *Subscription) Recv() (event.Envelope, error) {
	var env event.Envelope
	if err := s.stream.RecvMsg(&env); err != nil {
		return event.Envelope{}, err
	}
	return env, nil
}

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/event"
)

const inboundQueueSize = 256

// ErrHubStopped is returned by Hub calls made after the hub loop exited.
var ErrHubStopped = errors.New("relay hub stopped")

// Client is a connected consumer. Send must never block: it queues the frame
// or reports false when the client is closed or cannot keep up.
type Client interface {
	ID() string
	Send(frame []byte) bool
	Close()
}

// Sink receives every broadcast frame after the clients did.
type Sink interface {
	Publish(msgType string, frame []byte)
}

type registration struct {
	client Client
	done   chan struct{}
}

// inboundFrame is one unit of hub work. Queries ride the same queue as
// frames so they observe every frame submitted before them.
type inboundFrame struct {
	origin string
	data   []byte
	query  func()
}

// Hub is the relay's single execution context. One goroutine owns the State
// and the client set; connects, inbound frames, queries and broadcasts are
// processed one at a time in arrival order.
type Hub struct {
	state  *State
	sink   Sink
	logger apt.Logger

	clients map[string]Client

	register   chan registration
	unregister chan string
	inbound    chan inboundFrame

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHub creates a hub around state. sink may be nil.
func NewHub(state *State, sink Sink, logger apt.Logger) *Hub {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if state == nil {
		state = NewState(nil)
	}
	return &Hub{
		state:      state,
		sink:       sink,
		logger:     logger,
		clients:    make(map[string]Client),
		register:   make(chan registration),
		unregister: make(chan string),
		inbound:    make(chan inboundFrame, inboundQueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the hub loop. The loop outlives ctx and ends on Stop.
func (h *Hub) Start(ctx context.Context) error {
	h.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.run(loopCtx)
		h.logger.Info("relay hub started")
	})
	return nil
}

// Stop ends the hub loop and closes every client.
func (h *Hub) Stop(ctx context.Context) error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()

	ctx, cancel := stopContext(ctx)
	defer cancel()

	select {
	case <-h.done:
		h.logger.Info("relay hub stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case reg := <-h.register:
			h.addClient(reg.client)
			close(reg.done)
		case id := <-h.unregister:
			h.removeClient(id)
		case in := <-h.inbound:
			if in.query != nil {
				in.query()
				continue
			}
			h.handle(in)
		}
	}
}

// Register adds c and queues both snapshots to it. When Register returns
// nil the snapshots are ahead of any broadcast in c's queue.
func (h *Hub) Register(ctx context.Context, c Client) error {
	reg := registration{client: c, done: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reg.done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes the client with id. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// Submit queues an inbound frame from origin. Invalid frames are dropped
// later, inside the loop, without any reply.
func (h *Hub) Submit(ctx context.Context, origin string, frame []byte) error {
	select {
	case h.inbound <- inboundFrame{origin: origin, data: frame}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tickets returns the active tickets as the hub sees them now.
func (h *Hub) Tickets(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket
	if err := h.query(ctx, func() { tickets = h.state.Tickets() }); err != nil {
		return nil, err
	}
	return tickets, nil
}

// SalesToday returns today's sales bucket.
func (h *Hub) SalesToday(ctx context.Context) (SalesSnapshot, error) {
	var snapshot SalesSnapshot
	if err := h.query(ctx, func() { snapshot = h.state.SalesToday() }); err != nil {
		return SalesSnapshot{}, err
	}
	return snapshot, nil
}

// ConnectionCount returns the number of registered clients.
func (h *Hub) ConnectionCount(ctx context.Context) (int, error) {
	var count int
	if err := h.query(ctx, func() { count = len(h.clients) }); err != nil {
		return 0, err
	}
	return count, nil
}

func (h *Hub) query(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	q := func() {
		fn()
		close(done)
	}

	select {
	case h.inbound <- inboundFrame{query: q}:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) addClient(c Client) {
	id := c.ID()
	h.clients[id] = c

	h.unicast(c, event.TypeOrderSnapshot, h.state.Tickets())
	h.unicast(c, event.TypeSalesSnapshot, h.state.SalesToday())

	h.logger.Info("client connected", "client_id", id, "total_clients", len(h.clients))
}

func (h *Hub) removeClient(id string) {
	if _, ok := h.clients[id]; !ok {
		return
	}
	delete(h.clients, id)
	h.logger.Info("client disconnected", "client_id", id, "total_clients", len(h.clients))
}

func (h *Hub) closeAll() {
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) handle(in inboundFrame) {
	env, ok := DecodeEnvelope(in.data)
	if !ok {
		h.drop(in.origin, "", "malformed frame")
		return
	}

	switch env.Type {
	case event.TypeNewOrder:
		ticket, ok := h.state.ApplyNewOrder(env.Payload)
		if !ok {
			h.drop(in.origin, env.Type, "invalid ticket")
			return
		}
		h.broadcast(env.Type, ticket)

	case event.TypeUpdateOrderStatus:
		update, ok := h.state.ApplyStatusUpdate(env.Payload)
		if !ok {
			h.drop(in.origin, env.Type, "invalid status or unknown ticket")
			return
		}
		h.broadcast(env.Type, update)

	case event.TypeNewSale:
		sale, ok := h.state.ApplyNewSale(env.Payload)
		if !ok {
			h.drop(in.origin, env.Type, "invalid sale")
			return
		}
		h.broadcast(env.Type, sale)
	}
}

func (h *Hub) drop(origin, msgType, reason string) {
	h.logger.Debug("frame dropped", "origin", origin, "type", msgType, "reason", reason)
}

func (h *Hub) unicast(c Client, msgType string, payload any) {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		h.logger.Error("cannot encode snapshot", "type", msgType, "error", err)
		return
	}
	if !c.Send(frame) {
		h.logger.Debug("client skipped", "client_id", c.ID(), "type", msgType)
	}
}

// broadcast serializes once and offers the frame to every client, the
// sender included, then to the sink.
func (h *Hub) broadcast(msgType string, payload any) {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		h.logger.Error("cannot encode broadcast", "type", msgType, "error", err)
		return
	}

	for id, c := range h.clients {
		if !c.Send(frame) {
			h.logger.Debug("client skipped", "client_id", id, "type", msgType)
		}
	}

	if h.sink != nil {
		h.sink.Publish(msgType, frame)
	}
}

package relay

import (
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type HandlerDeps struct {
	Hub      *Hub
	Settings Settings
}

// Handler serves the relay socket and the read-only snapshot API.
type Handler struct {
	hub        *Hub
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     apt.Logger
}

func NewHandler(deps HandlerDeps, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		hub:        deps.Hub,
		sendBuffer: deps.Settings.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(deps.Settings.AllowedOrigins),
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ServeSocket)
	r.Get("/ws", h.ServeSocket)
	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tickets", h.ListTickets)
		r.Get("/sales/today", h.SalesToday)
	})
}

// Router builds the chi router the relay listener serves.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", middleware.GetReqID(r.Context()))
}

// ServeSocket upgrades the request and blocks until the client goes away.
func (h *Handler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		apt.RespondError(w, http.StatusUpgradeRequired, "WebSocket upgrade required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r).Debug("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(uuid.NewString(), conn, h.hub, h.sendBuffer, h.logger)
	client.serve(r.Context())
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.hub.Tickets(r.Context())
	if err != nil {
		h.log(r).Errorf("cannot read tickets: %v", err)
		apt.RespondError(w, http.StatusServiceUnavailable, "Relay unavailable")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) SalesToday(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.hub.SalesToday(r.Context())
	if err != nil {
		h.log(r).Errorf("cannot read sales: %v", err)
		apt.RespondError(w, http.StatusServiceUnavailable, "Relay unavailable")
		return
	}

	apt.Respond(w, http.StatusOK, Summarize(snapshot), nil)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.hub.ConnectionCount(r.Context())
	if err != nil {
		apt.RespondError(w, http.StatusServiceUnavailable, "Relay unavailable")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": count,
	}, nil)
}

// originChecker allows any origin when none are configured; socket clients
// are not authenticated.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

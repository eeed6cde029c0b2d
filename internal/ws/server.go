package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/auth"
	"momo-storefront/internal/config"
	"momo-storefront/internal/middleware"
	"momo-storefront/internal/storefront"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageStorefrontState = "storefront.state"
	MessageDashboardState  = "dashboard.state"

	writeWait = 10 * time.Second
	// sendBuffer is how many pushes may queue for one socket before it is dropped.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	Portal    *storefront.Portal
	Dashboard *admin.Dashboard
	Sessions  *auth.Sessions
	Logger    *zap.Logger
	Config    config.Config

	storefrontRealtime *realtimeHub
	dashboardRealtime  *realtimeHub
}

func New(portal *storefront.Portal, dashboard *admin.Dashboard, sessions *auth.Sessions, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{Portal: portal, Dashboard: dashboard, Sessions: sessions, Logger: logger, Config: cfg}
	srv.storefrontRealtime = newRealtimeHub(MessageStorefrontState, logger, func(push func(any)) func() {
		return portal.Subscribe(func(s storefront.Snapshot) { push(s) })
	})
	srv.dashboardRealtime = newRealtimeHub(MessageDashboardState, logger, func(push func(any)) func() {
		return dashboard.Subscribe(func(s admin.Snapshot) { push(s) })
	})
	return srv
}

// Close detaches from the portal and dashboard and drops every open socket.
func (s *Server) Close() {
	s.storefrontRealtime.close()
	s.dashboardRealtime.close()
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	send      chan any
	closed    chan struct{}
	closeOnce sync.Once
}

func newRealtimeClient(conn *websocket.Conn) *wsRealtimeClient {
	return &wsRealtimeClient{
		conn:   conn,
		send:   make(chan any, sendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue never blocks; false means the client's queue is full.
func (c *wsRealtimeClient) enqueue(message any) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *wsRealtimeClient) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writeLoop drains the send queue until the client is closed or a write fails.
func (c *wsRealtimeClient) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case message := <-c.send:
			if err := c.writeJSON(message); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// realtimeHub fans one state stream out to every connected socket. It attaches to its
// source on the first connection.
type realtimeHub struct {
	messageType string
	logger      *zap.Logger
	source      func(push func(any)) (unsubscribe func())

	started     sync.Once
	mu          sync.RWMutex
	subs        map[*wsRealtimeClient]struct{}
	unsubscribe func()
}

func newRealtimeHub(messageType string, logger *zap.Logger, source func(push func(any)) func()) *realtimeHub {
	return &realtimeHub{
		messageType: messageType,
		logger:      logger,
		source:      source,
		subs:        make(map[*wsRealtimeClient]struct{}),
	}
}

func (h *realtimeHub) ensureStarted() {
	h.started.Do(func() {
		unsubscribe := h.source(h.broadcast)
		h.mu.Lock()
		h.unsubscribe = unsubscribe
		h.mu.Unlock()
	})
}

func (h *realtimeHub) subscribe(client *wsRealtimeClient) (unsubscribe func()) {
	h.mu.Lock()
	h.subs[client] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, client)
		h.mu.Unlock()
	}
}

func (h *realtimeHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *realtimeHub) message(data any) map[string]any {
	return map[string]any{"type": h.messageType, "data": data}
}

// broadcast queues data for every client. A client whose queue is full is dropped so a
// stalled socket never holds up the mutation that triggered the push.
func (h *realtimeHub) broadcast(data any) {
	h.mu.RLock()
	clients := make([]*wsRealtimeClient, 0, len(h.subs))
	for c := range h.subs {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	message := h.message(data)
	for _, c := range clients {
		if c.enqueue(message) {
			continue
		}
		h.logger.Debug("dropping slow websocket client", zap.String("stream", h.messageType))
		c.close()
		h.mu.Lock()
		delete(h.subs, c)
		h.mu.Unlock()
	}
}

func (h *realtimeHub) close() {
	h.mu.Lock()
	unsubscribe := h.unsubscribe
	h.unsubscribe = nil
	clients := h.subs
	h.subs = make(map[*wsRealtimeClient]struct{})
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for c := range clients {
		c.close()
	}
}

// StorefrontWS streams the customer portal state: status, menu, cart and checkout.
func (s *Server) StorefrontWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.storefrontRealtime.ensureStarted()
	client := newRealtimeClient(conn)
	unsubscribe := s.storefrontRealtime.subscribe(client)
	defer unsubscribe()

	// Send the current state immediately
	_ = client.writeJSON(s.storefrontRealtime.message(s.Portal.Snapshot()))

	s.serve(r.Context(), client, nil)
}

// AdminWS streams dashboard snapshots after every applied reload. The admin token comes
// from the token query parameter since browsers cannot set headers on a websocket.
func (s *Server) AdminWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if bearer := auth.ParseBearerToken(token); bearer != "" {
		token = bearer
	}
	authCtx, err := middleware.Authenticate(token, s.Config.JWTSecret, s.Sessions)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.dashboardRealtime.ensureStarted()
	client := newRealtimeClient(conn)
	unsubscribe := s.dashboardRealtime.subscribe(client)
	defer unsubscribe()

	_ = client.writeJSON(s.dashboardRealtime.message(s.Dashboard.Snapshot()))

	s.serve(r.Context(), client, func() bool {
		if s.Sessions == nil || s.Sessions.Active(authCtx.SessionID) {
			return true
		}
		_ = client.writeJSON(map[string]any{"type": "session.ended"})
		return false
	})
}

// serve keeps the socket open until the client goes away, pinging on every heartbeat.
// alive, when set, is checked on each heartbeat and ends the connection when false.
func (s *Server) serve(ctx context.Context, client *wsRealtimeClient, alive func() bool) {
	defer client.close()
	go client.writeLoop()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := client.conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	interval := s.Config.WSHeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-client.closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if alive != nil && !alive() {
				return
			}
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

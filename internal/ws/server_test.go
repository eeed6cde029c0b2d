package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/api"
	"momo-storefront/internal/auth"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/config"
	"momo-storefront/internal/storefront"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fakeStorefrontAPI struct{}

func (fakeStorefrontAPI) GetMenu(context.Context) ([]api.MenuItem, error) {
	return []api.MenuItem{{ID: 1, Name: "Veg Momo", PriceFull: 120, PriceHalf: 70, IsAvailable: true}}, nil
}

func (fakeStorefrontAPI) GetStatus(context.Context) (api.Status, error) {
	return api.Status{IsOpen: true}, nil
}

func (fakeStorefrontAPI) CreateOrder(context.Context, api.CreateOrderRequest) (api.Order, error) {
	return api.Order{ID: 1}, nil
}

func (fakeStorefrontAPI) ConfirmPayment(context.Context, int64) (api.Order, error) {
	return api.Order{ID: 1}, nil
}

type stateMessage struct {
	Type string              `json:"type"`
	Data storefront.Snapshot `json:"data"`
}

func newTestServer(t *testing.T) (*Server, *cart.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := cart.NewStore(ctx, nil, "momo_cart", nil)
	portal := storefront.New(fakeStorefrontAPI{}, store, storefront.Options{StatusInterval: time.Hour, InitialDelay: time.Hour})
	t.Cleanup(portal.Close)
	if err := portal.Start(ctx); err != nil {
		t.Fatalf("portal start: %v", err)
	}

	// The dashboard is never logged in here, so its backend is never called.
	dashboard := admin.New(nil, admin.Options{})
	t.Cleanup(dashboard.Close)

	cfg := config.Config{JWTSecret: "test-secret", WSHeartbeatInterval: 20 * time.Millisecond}
	srv := New(portal, dashboard, auth.NewSessions(), zap.NewNop(), cfg)
	t.Cleanup(srv.Close)

	r := chi.NewRouter()
	r.Get("/ws/storefront", srv.StorefrontWS)
	r.Get("/ws/admin", srv.AdminWS)
	httpSrv := httptest.NewServer(r)
	t.Cleanup(httpSrv.Close)
	return srv, store, "ws" + strings.TrimPrefix(httpSrv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestStorefrontStreamsState(t *testing.T) {
	srv, store, base := newTestServer(t)
	conn := dial(t, base+"/ws/storefront")

	var initial stateMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if initial.Type != MessageStorefrontState {
		t.Fatalf("expected %s, got %s", MessageStorefrontState, initial.Type)
	}
	if initial.Data.Paused || len(initial.Data.Menu) != 1 {
		t.Fatalf("unexpected initial state %+v", initial.Data)
	}

	// The initial message is written after subscribing, so the next mutation is seen.
	if n := srv.storefrontRealtime.count(); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	if err := store.Add(context.Background(), 1, cart.PortionFull); err != nil {
		t.Fatalf("add: %v", err)
	}

	var update stateMessage
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Data.Cart.TotalItems != 1 {
		t.Fatalf("expected 1 item in pushed cart, got %d", update.Data.Cart.TotalItems)
	}
	if update.Data.EstimatedTotal != 120 {
		t.Fatalf("expected estimated total 120, got %v", update.Data.EstimatedTotal)
	}
}

func TestAdminStreamRejectsMissingToken(t *testing.T) {
	_, _, base := newTestServer(t)

	for _, url := range []string{base + "/ws/admin", base + "/ws/admin?token=garbage"} {
		conn := dial(t, url)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg["type"] != "error" || msg["message"] != "unauthorized" {
			t.Fatalf("expected unauthorized error, got %v", msg)
		}
	}
}

func TestAdminStreamEndsWithSession(t *testing.T) {
	srv, _, base := newTestServer(t)

	sessionID, err := auth.NewSessionID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	token, expiresAt, err := auth.IssueAccessToken("test-secret", 1, "admin", sessionID, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	srv.Sessions.Add(sessionID, expiresAt)

	conn := dial(t, base+"/ws/admin?token="+token)
	var initial map[string]any
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if initial["type"] != MessageDashboardState {
		t.Fatalf("expected %s, got %v", MessageDashboardState, initial["type"])
	}

	srv.Sessions.Revoke(sessionID)

	var ended map[string]any
	if err := conn.ReadJSON(&ended); err != nil {
		t.Fatalf("read session end: %v", err)
	}
	if ended["type"] != "session.ended" {
		t.Fatalf("expected session.ended, got %v", ended)
	}
	var next map[string]any
	if err := conn.ReadJSON(&next); err == nil {
		t.Fatalf("expected the socket to close, got %v", next)
	}
}

func TestBroadcastDropsClientWithFullQueue(t *testing.T) {
	upgraded := make(chan *websocket.Conn, 1)
	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- conn
	}))
	t.Cleanup(httpSrv.Close)
	dial(t, "ws"+strings.TrimPrefix(httpSrv.URL, "http"))

	hub := newRealtimeHub("test.state", zap.NewNop(), nil)
	// No writeLoop runs, so nothing drains the queue.
	stalled := newRealtimeClient(<-upgraded)
	hub.subscribe(stalled)

	start := time.Now()
	for i := 0; i <= sendBuffer; i++ {
		hub.broadcast(i)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected broadcast not to block, took %s", elapsed)
	}
	if n := hub.count(); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
	select {
	case <-stalled.closed:
	default:
		t.Fatalf("expected the stalled client to be closed")
	}
}

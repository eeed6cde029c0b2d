package storefront

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/checkout"
)

type memoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return v, nil
}

func (m *memoryStorage) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeAPI struct {
	mu          sync.Mutex
	menuErr     error
	statusErr   error
	status      api.Status
	menu        []api.MenuItem
	statusCalls atomic.Int64
	order       api.Order
}

func (f *fakeAPI) GetMenu(context.Context) ([]api.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.menuErr != nil {
		return nil, f.menuErr
	}
	return f.menu, nil
}

func (f *fakeAPI) GetStatus(context.Context) (api.Status, error) {
	f.statusCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return api.Status{}, f.statusErr
	}
	return f.status, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, req api.CreateOrderRequest) (api.Order, error) {
	order := f.order
	order.PaymentMethod = req.PaymentMethod
	return order, nil
}

func (f *fakeAPI) ConfirmPayment(_ context.Context, id int64) (api.Order, error) {
	return api.Order{ID: id, PaymentStatus: api.PaymentStatusUnpaid}, nil
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newPortal(t *testing.T, client *fakeAPI, interval time.Duration) *Portal {
	t.Helper()
	store := cart.NewStore(context.Background(), &memoryStorage{data: map[string][]byte{}}, "momo_cart", nil)
	p := New(client, store, Options{StatusInterval: interval, InitialDelay: time.Millisecond})
	t.Cleanup(p.Close)
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

func TestLoadFailureIsRetryable(t *testing.T) {
	client := &fakeAPI{menuErr: &api.Error{StatusCode: 500, Message: "HTTP error! status: 500"}}
	p := newPortal(t, client, time.Hour)

	if err := p.Start(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	snap := p.Snapshot()
	if snap.Loading || snap.Error != "HTTP error! status: 500" {
		t.Fatalf("expected error state, got %+v", snap)
	}
	if p.PollingStatus() {
		t.Fatalf("status polling must wait for a successful load")
	}

	client.set(func(f *fakeAPI) {
		f.menuErr = nil
		f.menu = []api.MenuItem{{ID: 1, Name: "Veg Momo", PriceFull: 120, PriceHalf: 70, IsAvailable: true}}
		f.status = api.Status{IsOpen: true}
	})
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	snap = p.Snapshot()
	if snap.Error != "" || len(snap.Menu) != 1 || snap.Paused {
		t.Fatalf("expected loaded open storefront, got %+v", snap)
	}
	if !p.PollingStatus() {
		t.Fatalf("expected status polling after first success")
	}
}

func TestStatusPollingPicksUpPause(t *testing.T) {
	client := &fakeAPI{status: api.Status{IsOpen: true}}
	p := newPortal(t, client, 5*time.Millisecond)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.Paused() {
		t.Fatalf("expected open store")
	}

	var notified atomic.Int64
	unsubscribe := p.Subscribe(func(snap Snapshot) {
		if snap.Paused && snap.PauseMessage == "Back in 10" {
			notified.Add(1)
		}
	})
	defer unsubscribe()

	client.set(func(f *fakeAPI) { f.status = api.Status{IsOpen: false, PauseMessage: "Back in 10"} })
	waitFor(t, func() bool { return p.Paused() })
	waitFor(t, func() bool { return notified.Load() >= 1 })
}

func TestPollingErrorsKeepLastStatus(t *testing.T) {
	client := &fakeAPI{status: api.Status{IsOpen: true}}
	p := newPortal(t, client, 5*time.Millisecond)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	client.set(func(f *fakeAPI) { f.statusErr = errors.New("offline") })
	before := client.statusCalls.Load()
	waitFor(t, func() bool { return client.statusCalls.Load() >= before+3 })
	if p.Paused() {
		t.Fatalf("poll failures must not change the last known status")
	}
}

func TestUnknownStatusBlocksCheckout(t *testing.T) {
	client := &fakeAPI{statusErr: errors.New("offline")}
	p := newPortal(t, client, time.Hour)
	_ = p.Start(context.Background())

	if err := p.Cart().Add(context.Background(), 1, cart.PortionFull); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.Checkout().ReviewCart(); !errors.Is(err, checkout.ErrStorePaused) {
		t.Fatalf("expected paused guard, got %v", err)
	}
}

func TestSnapshotCombinesCartAndCheckout(t *testing.T) {
	client := &fakeAPI{
		status: api.Status{IsOpen: true},
		menu:   []api.MenuItem{{ID: 4, PriceFull: 100, PriceHalf: 60}},
		order:  api.Order{ID: 31, TotalAmount: 260},
	}
	p := newPortal(t, client, time.Hour)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	var updates atomic.Int64
	defer p.Subscribe(func(Snapshot) { updates.Add(1) })()

	_ = p.Cart().Add(ctx, 4, cart.PortionFull)
	_ = p.Cart().Add(ctx, 4, cart.PortionFull)
	_ = p.Cart().Add(ctx, 4, cart.PortionHalf)

	snap := p.Snapshot()
	if snap.EstimatedTotal != 260 || snap.Cart.TotalItems != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	flow := p.Checkout()
	if err := flow.ReviewCart(); err != nil {
		t.Fatalf("review: %v", err)
	}
	if err := flow.Checkout("Ravi", "9000000000"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := flow.PayCash(ctx); err != nil {
		t.Fatalf("pay: %v", err)
	}

	snap = p.Snapshot()
	if snap.Checkout.State != checkout.StateOrderSubmitted || snap.Cart.TotalItems != 0 {
		t.Fatalf("expected submitted order with empty cart, got %+v", snap.Checkout)
	}
	if updates.Load() < 5 {
		t.Fatalf("expected change notifications, got %d", updates.Load())
	}
}

package storefront

import (
	"context"
	"sync"
	"time"

	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/checkout"
	"momo-storefront/internal/poller"

	"go.uber.org/zap"
)

type API interface {
	GetMenu(ctx context.Context) ([]api.MenuItem, error)
	GetStatus(ctx context.Context) (api.Status, error)
	checkout.OrderAPI
}

type Options struct {
	StatusInterval time.Duration
	InitialDelay   time.Duration
	MerchantName   string
	Launcher       checkout.Launcher
	Publisher      checkout.Publisher
	Logger         *zap.Logger
}

// Snapshot is what a customer screen renders.
type Snapshot struct {
	Loading        bool           `json:"loading"`
	Error          string         `json:"error,omitempty"`
	Status         *api.Status    `json:"status,omitempty"`
	Paused         bool           `json:"paused"`
	PauseMessage   string         `json:"pause_message,omitempty"`
	Menu           []api.MenuItem `json:"menu"`
	Cart           cart.Snapshot  `json:"cart"`
	EstimatedTotal float64        `json:"estimated_total"`
	Checkout       checkout.View  `json:"checkout"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Portal is the customer side of the client: it loads menu and status, keeps status fresh
// by polling and drives the checkout flow over the shared cart.
type Portal struct {
	api    API
	cart   *cart.Store
	flow   *checkout.Flow
	status *poller.Poller
	logger *zap.Logger

	menuSeq   poller.Sequence
	statusSeq poller.Sequence

	mu        sync.RWMutex
	baseCtx   context.Context
	loading   bool
	loadErr   string
	menu      []api.MenuItem
	current   *api.Status
	updatedAt time.Time

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int

	unsubscribeCart func()
}

func New(client API, store *cart.Store, opts Options) *Portal {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Portal{
		api:       client,
		cart:      store,
		logger:    logger,
		baseCtx:   context.Background(),
		loading:   true,
		listeners: make(map[int]func(Snapshot)),
	}
	p.flow = checkout.NewFlow(client, store, p.Status, checkout.Options{
		MerchantName: opts.MerchantName,
		Launcher:     opts.Launcher,
		Publisher:    opts.Publisher,
		Logger:       logger.Named("checkout"),
		OnChange:     p.notify,
	})
	p.status = poller.New(p.refreshStatus, opts.StatusInterval,
		poller.WithInitialDelay(opts.InitialDelay),
		poller.WithLogger(logger),
		poller.WithName("storefront-status"),
	)
	p.unsubscribeCart = store.Subscribe(func(cart.Snapshot) { p.notify() })
	return p
}

// Start performs the initial load. Status polling begins after the first successful load
// and lives until ctx is cancelled or Close is called.
func (p *Portal) Start(ctx context.Context) error {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()
	return p.Load(ctx)
}

func (p *Portal) Close() {
	p.status.Stop()
	if p.unsubscribeCart != nil {
		p.unsubscribeCart()
	}
}

// Load fetches the menu, then the status. A failure leaves the portal in a retryable
// error state; calling Load again is the retry.
func (p *Portal) Load(ctx context.Context) error {
	menuToken := p.menuSeq.Begin()
	statusToken := p.statusSeq.Begin()

	p.mu.Lock()
	p.loading = true
	p.loadErr = ""
	p.mu.Unlock()

	menu, err := p.api.GetMenu(ctx)
	if err != nil {
		p.fail(err)
		return err
	}
	p.menuSeq.Apply(menuToken, func() {
		p.mu.Lock()
		p.menu = menu
		p.mu.Unlock()
	})

	status, err := p.api.GetStatus(ctx)
	if err != nil {
		p.fail(err)
		return err
	}
	p.statusSeq.Apply(statusToken, func() { p.setStatus(status) })

	p.mu.Lock()
	p.loading = false
	p.updatedAt = time.Now().UTC()
	baseCtx := p.baseCtx
	p.mu.Unlock()

	p.logger.Debug("storefront loaded", zap.Int("menuItems", len(menu)), zap.Bool("isOpen", status.IsOpen))
	p.status.Start(baseCtx)
	p.notify()
	return nil
}

func (p *Portal) fail(err error) {
	p.logger.Warn("error loading storefront", zap.Error(err))
	p.mu.Lock()
	p.loading = false
	p.loadErr = err.Error()
	p.mu.Unlock()
	p.notify()
}

func (p *Portal) refreshStatus(ctx context.Context) error {
	token := p.statusSeq.Begin()
	status, err := p.api.GetStatus(ctx)
	if err != nil {
		return err
	}
	changed := false
	p.statusSeq.Apply(token, func() {
		p.mu.RLock()
		prev := p.current
		p.mu.RUnlock()
		changed = prev == nil || *prev != status
		p.setStatus(status)
	})
	if changed {
		p.notify()
	}
	return nil
}

func (p *Portal) setStatus(status api.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &status
	p.updatedAt = time.Now().UTC()
}

// Status returns the last known store status; ok is false until the first load succeeds.
func (p *Portal) Status() (api.Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return api.Status{}, false
	}
	return *p.current, true
}

// Paused treats an unknown status as paused.
func (p *Portal) Paused() bool {
	status, ok := p.Status()
	return !ok || !status.IsOpen
}

func (p *Portal) Menu() []api.MenuItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]api.MenuItem(nil), p.menu...)
}

func (p *Portal) Cart() *cart.Store {
	return p.cart
}

func (p *Portal) Checkout() *checkout.Flow {
	return p.flow
}

// PollingStatus reports whether the status poller is active.
func (p *Portal) PollingStatus() bool {
	return p.status.Running()
}

func (p *Portal) Snapshot() Snapshot {
	p.mu.RLock()
	snap := Snapshot{
		Loading:   p.loading,
		Error:     p.loadErr,
		Menu:      append([]api.MenuItem(nil), p.menu...),
		UpdatedAt: p.updatedAt,
	}
	if p.current != nil {
		status := *p.current
		snap.Status = &status
		snap.PauseMessage = status.PauseMessage
	}
	p.mu.RUnlock()

	snap.Paused = snap.Status == nil || !snap.Status.IsOpen
	snap.Cart = p.cart.Snapshot()
	snap.EstimatedTotal = checkout.EstimateTotal(snap.Menu, snap.Cart.Lines)
	snap.Checkout = p.flow.View()
	return snap
}

// Subscribe registers fn for every portal change and returns an unsubscribe func.
func (p *Portal) Subscribe(fn func(Snapshot)) func() {
	p.listenersMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.listenersMu.Unlock()
	return func() {
		p.listenersMu.Lock()
		delete(p.listeners, id)
		p.listenersMu.Unlock()
	}
}

func (p *Portal) notify() {
	p.listenersMu.Lock()
	if len(p.listeners) == 0 {
		p.listenersMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenersMu.Unlock()

	snap := p.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

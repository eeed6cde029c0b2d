package admin

import (
	"context"
	"errors"
	"sync"
	"time"

	"momo-storefront/internal/api"
	"momo-storefront/internal/poller"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotLoggedIn      = errors.New("admin login required")
	ErrOrderNotFound    = errors.New("order not found")
	ErrLineNotFound     = errors.New("order line not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrInvalidPortion   = errors.New("portion must be full or half")
	ErrNameRequired     = errors.New("item name is required")
	ErrNegativePrice    = errors.New("price must not be negative")
)

const (
	EventOrderUpdated      = "admin.order.updated"
	EventOrderDelivered    = "admin.order.delivered"
	EventStatusUpdated     = "admin.status.updated"
	EventMerchantActivated = "admin.merchant.activated"
	EventMenuUpdated       = "admin.menu.updated"
)

type API interface {
	Login(ctx context.Context, password string) (api.AdminUser, error)
	GetOrders(ctx context.Context) ([]api.Order, error)
	GetDeliveredOrders(ctx context.Context) ([]api.Order, error)
	GetMerchants(ctx context.Context) ([]api.Merchant, error)
	GetStatus(ctx context.Context) (api.Status, error)
	UpdateOrder(ctx context.Context, orderID int64, update api.OrderUpdate) (api.Order, error)
	UpdateStatus(ctx context.Context, update api.StatusUpdate) (api.Status, error)
	ActivateMerchant(ctx context.Context, merchantID int64) (api.Merchant, error)
	GetMenuItems(ctx context.Context) ([]api.MenuItem, error)
	UpdateMenuItem(ctx context.Context, itemID int64, update api.MenuItemUpdate) (api.MenuItem, error)
	AddMenuItem(ctx context.Context, req api.AddMenuItemRequest) (api.MenuItem, error)
	GetUniversalItems(ctx context.Context) ([]api.UniversalItem, error)
	ExportDatabase(ctx context.Context) ([]byte, string, error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Archiver stores export files. storage.ObjectStore satisfies it.
type Archiver interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Prune(ctx context.Context, prefix string, keep int) (int, error)
}

// Options configure a Dashboard. ArchiveRetain is how many archived exports to keep; 0
// keeps all of them. SessionsLive, when set, is checked before every poll; once it reports
// false the dashboard logs out.
type Options struct {
	PollInterval  time.Duration
	InitialDelay  time.Duration
	Publisher     Publisher
	Archiver      Archiver
	ArchiveRetain int
	SessionsLive  func() bool
	Logger        *zap.Logger
}

type Event struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"orderId,omitempty"`
	MerchantID int64     `json:"merchantId,omitempty"`
	MenuItemID int64     `json:"menuItemId,omitempty"`
	Detail     any       `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Snapshot struct {
	LoggedIn  bool           `json:"logged_in"`
	Admin     *api.AdminUser `json:"admin,omitempty"`
	Loading   bool           `json:"loading"`
	Error     string         `json:"error,omitempty"`
	Orders    []api.Order    `json:"orders"`
	Delivered []api.Order    `json:"delivered"`
	Merchants []api.Merchant `json:"merchants"`
	Status    *api.Status    `json:"status,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ActiveMerchant returns the merchant the backend currently routes UPI payments to.
func (s Snapshot) ActiveMerchant() (api.Merchant, bool) {
	for _, m := range s.Merchants {
		if m.IsActive {
			return m, true
		}
	}
	return api.Merchant{}, false
}

// Dashboard mirrors the backend's admin view. Every mutation is sent to the backend and
// followed by a full reload; the local snapshot is never patched in place.
type Dashboard struct {
	api    API
	opts   Options
	logger *zap.Logger
	poller *poller.Poller

	seq     poller.Sequence
	menuSeq poller.Sequence

	mu      sync.RWMutex
	baseCtx context.Context
	snap    Snapshot
	menu    MenuSnapshot

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int
}

func New(client API, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dashboard{
		api:       client,
		opts:      opts,
		logger:    logger,
		baseCtx:   context.Background(),
		listeners: make(map[int]func(Snapshot)),
	}
	d.poller = poller.New(d.poll, opts.PollInterval,
		poller.WithInitialDelay(opts.InitialDelay),
		poller.WithLogger(logger),
		poller.WithName("admin-dashboard"),
	)
	return d
}

func (d *Dashboard) poll(ctx context.Context) error {
	if d.opts.SessionsLive != nil && !d.opts.SessionsLive() {
		d.logger.Info("no admin session left, logging dashboard out")
		// Logout waits for this fetch to return.
		go d.Logout()
		return nil
	}
	return d.Reload(ctx)
}

// SetBaseContext sets the context the poller runs under after Login.
func (d *Dashboard) SetBaseContext(ctx context.Context) {
	d.mu.Lock()
	d.baseCtx = ctx
	d.mu.Unlock()
}

func (d *Dashboard) Close() {
	d.poller.Stop()
}

// Login authenticates against the backend, loads the dashboard and starts polling.
func (d *Dashboard) Login(ctx context.Context, password string) (api.AdminUser, error) {
	user, err := d.api.Login(ctx, password)
	if err != nil {
		d.logger.Warn("admin login failed", zap.Error(err))
		return api.AdminUser{}, err
	}

	d.mu.Lock()
	d.snap = Snapshot{LoggedIn: true, Admin: &user, Loading: true}
	baseCtx := d.baseCtx
	d.mu.Unlock()

	d.logger.Info("admin logged in", zap.String("username", user.Username))
	if err := d.Reload(ctx); err != nil {
		d.logger.Warn("initial dashboard load failed", zap.Error(err))
	}
	d.poller.Start(baseCtx)
	return user, nil
}

// Logout stops polling and forgets all admin data.
func (d *Dashboard) Logout() {
	d.poller.Stop()
	d.seq.Apply(d.seq.Begin(), func() {
		d.mu.Lock()
		d.snap = Snapshot{}
		d.menu = MenuSnapshot{}
		d.mu.Unlock()
	})
	d.notify()
}

func (d *Dashboard) LoggedIn() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap.LoggedIn
}

func (d *Dashboard) Polling() bool {
	return d.poller.Running()
}

func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copySnapshot(d.snap)
}

// Reload fetches orders, delivered orders, merchants and status together. The result is
// dropped if a later reload has already been applied or the admin logged out meanwhile.
func (d *Dashboard) Reload(ctx context.Context) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	token := d.seq.Begin()

	var (
		orders    []api.Order
		delivered []api.Order
		merchants []api.Merchant
		status    api.Status
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = d.api.GetOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		delivered, err = d.api.GetDeliveredOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		merchants, err = d.api.GetMerchants(gctx)
		return err
	})
	g.Go(func() (err error) {
		status, err = d.api.GetStatus(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		applied := d.seq.Apply(token, func() {
			d.mu.Lock()
			if d.snap.LoggedIn {
				d.snap.Loading = false
				d.snap.Error = err.Error()
			}
			d.mu.Unlock()
		})
		if applied {
			d.notify()
		}
		return err
	}

	applied := d.seq.Apply(token, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.snap.LoggedIn {
			return
		}
		d.snap.Loading = false
		d.snap.Error = ""
		d.snap.Orders = orders
		d.snap.Delivered = delivered
		d.snap.Merchants = merchants
		d.snap.Status = &status
		d.snap.UpdatedAt = time.Now().UTC()
	})
	if applied {
		d.notify()
	}
	return nil
}

// Order finds an order among active and delivered orders of the current snapshot.
func (d *Dashboard) Order(orderID int64) (api.Order, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, list := range [][]api.Order{d.snap.Orders, d.snap.Delivered} {
		for _, o := range list {
			if o.ID == orderID {
				return o, true
			}
		}
	}
	return api.Order{}, false
}

// TogglePaid flips payment status between paid and pending.
func (d *Dashboard) TogglePaid(ctx context.Context, orderID int64) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	order, ok := d.Order(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	next := api.PaymentStatusPaid
	if order.PaymentStatus == api.PaymentStatusPaid {
		next = api.PaymentStatusPending
	}
	if _, err := d.api.UpdateOrder(ctx, orderID, api.OrderUpdate{PaymentStatus: &next}); err != nil {
		d.logger.Warn("error updating payment status", zap.Int64("orderId", orderID), zap.Error(err))
		return err
	}
	d.publish(ctx, Event{Type: EventOrderUpdated, OrderID: orderID, Detail: map[string]string{"payment_status": next}})
	d.reloadAfterWrite(ctx)
	return nil
}

// SetOrderStatus moves an order between new, preparing and served.
func (d *Dashboard) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	if _, ok := d.Order(orderID); !ok {
		return ErrOrderNotFound
	}
	if _, err := d.api.UpdateOrder(ctx, orderID, api.OrderUpdate{OrderStatus: &status}); err != nil {
		d.logger.Warn("error updating order status", zap.Int64("orderId", orderID), zap.Error(err))
		return err
	}
	d.publish(ctx, Event{Type: EventOrderUpdated, OrderID: orderID, Detail: map[string]string{"order_status": status}})
	d.reloadAfterWrite(ctx)
	return nil
}

// SetDelivered is the checkbox form: checked delivers the full ordered quantity of the
// portion, unchecked resets it to zero.
func (d *Dashboard) SetDelivered(ctx context.Context, orderID, lineID int64, portion string, delivered bool) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	line, err := d.line(orderID, lineID)
	if err != nil {
		return err
	}
	ordered, err := orderedQuantity(line, portion)
	if err != nil {
		return err
	}
	n := 0
	if delivered {
		n = ordered
	}
	return d.SetDeliveredQuantity(ctx, orderID, lineID, portion, n)
}

// SetDeliveredQuantity records how many portions of a line were handed out. The value is
// clamped to [0, ordered].
func (d *Dashboard) SetDeliveredQuantity(ctx context.Context, orderID, lineID int64, portion string, n int) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	line, err := d.line(orderID, lineID)
	if err != nil {
		return err
	}
	ordered, err := orderedQuantity(line, portion)
	if err != nil {
		return err
	}
	n = ClampDelivered(n, ordered)

	update := api.OrderItemUpdate{ID: lineID}
	if portion == "full" {
		update.DeliveredFull = &n
	} else {
		update.DeliveredHalf = &n
	}
	updated, err := d.api.UpdateOrder(ctx, orderID, api.OrderUpdate{Items: []api.OrderItemUpdate{update}})
	if err != nil {
		d.logger.Warn("error updating delivery", zap.Int64("orderId", orderID), zap.Int64("lineId", lineID), zap.Error(err))
		return err
	}
	d.publish(ctx, Event{Type: EventOrderUpdated, OrderID: orderID, Detail: map[string]any{"line_id": lineID, "portion": portion, "delivered": n}})
	if updated.FullyDelivered() {
		d.publish(ctx, Event{Type: EventOrderDelivered, OrderID: orderID})
	}
	d.reloadAfterWrite(ctx)
	return nil
}

func (d *Dashboard) line(orderID, lineID int64) (api.OrderItem, error) {
	order, ok := d.Order(orderID)
	if !ok {
		return api.OrderItem{}, ErrOrderNotFound
	}
	line, ok := order.Item(lineID)
	if !ok {
		return api.OrderItem{}, ErrLineNotFound
	}
	return line, nil
}

func orderedQuantity(line api.OrderItem, portion string) (int, error) {
	switch portion {
	case "full":
		return line.FullQty, nil
	case "half":
		return line.HalfQty, nil
	default:
		return 0, ErrInvalidPortion
	}
}

func ClampDelivered(n, ordered int) int {
	if n < 0 {
		return 0
	}
	if n > ordered {
		return ordered
	}
	return n
}

func (d *Dashboard) ActivateMerchant(ctx context.Context, merchantID int64) error {
	if !d.LoggedIn() {
		return ErrNotLoggedIn
	}
	if _, err := d.api.ActivateMerchant(ctx, merchantID); err != nil {
		d.logger.Warn("error activating merchant", zap.Int64("merchantId", merchantID), zap.Error(err))
		return err
	}
	d.publish(ctx, Event{Type: EventMerchantActivated, MerchantID: merchantID})
	d.reloadAfterWrite(ctx)
	return nil
}

// UpdateStatus opens or pauses the store and sets the pause message.
func (d *Dashboard) UpdateStatus(ctx context.Context, update api.StatusUpdate) (api.Status, error) {
	if !d.LoggedIn() {
		return api.Status{}, ErrNotLoggedIn
	}
	status, err := d.api.UpdateStatus(ctx, update)
	if err != nil {
		d.logger.Warn("error updating status", zap.Error(err))
		return api.Status{}, err
	}
	d.publish(ctx, Event{Type: EventStatusUpdated, Detail: status})
	d.reloadAfterWrite(ctx)
	return status, nil
}

// ToggleOpen flips is_open based on the last loaded status.
func (d *Dashboard) ToggleOpen(ctx context.Context) (api.Status, error) {
	d.mu.RLock()
	open := d.snap.Status != nil && d.snap.Status.IsOpen
	d.mu.RUnlock()
	next := !open
	return d.UpdateStatus(ctx, api.StatusUpdate{IsOpen: &next})
}

func (d *Dashboard) reloadAfterWrite(ctx context.Context) {
	if err := d.Reload(ctx); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		d.logger.Warn("reload after update failed", zap.Error(err))
	}
}

func (d *Dashboard) publish(ctx context.Context, event Event) {
	if d.opts.Publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := d.opts.Publisher.Publish(ctx, event.Type, event); err != nil {
		d.logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

// Subscribe registers fn for every applied reload and returns an unsubscribe func.
func (d *Dashboard) Subscribe(fn func(Snapshot)) func() {
	d.listenersMu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.listenersMu.Unlock()
	return func() {
		d.listenersMu.Lock()
		delete(d.listeners, id)
		d.listenersMu.Unlock()
	}
}

func (d *Dashboard) notify() {
	d.listenersMu.Lock()
	if len(d.listeners) == 0 {
		d.listenersMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.listenersMu.Unlock()

	snap := d.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

func copySnapshot(s Snapshot) Snapshot {
	out := s
	out.Orders = append([]api.Order(nil), s.Orders...)
	out.Delivered = append([]api.Order(nil), s.Delivered...)
	out.Merchants = append([]api.Merchant(nil), s.Merchants...)
	if s.Status != nil {
		status := *s.Status
		out.Status = &status
	}
	if s.Admin != nil {
		admin := *s.Admin
		out.Admin = &admin
	}
	return out
}

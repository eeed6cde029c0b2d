package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
)

type fakeCart struct {
	mu       sync.Mutex
	lines    []cart.Line
	deducted int
}

func (c *fakeCart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, l := range c.lines {
		total += l.FullQty + l.HalfQty
	}
	return total
}

func (c *fakeCart) Lines() []cart.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.Line(nil), c.lines...)
}

func (c *fakeCart) Deduct(_ context.Context, ordered []cart.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deducted++
	kept := c.lines[:0]
	for _, l := range c.lines {
		for _, o := range ordered {
			if o.MenuItemID == l.MenuItemID {
				l.FullQty = max(l.FullQty-o.FullQty, 0)
				l.HalfQty = max(l.HalfQty-o.HalfQty, 0)
			}
		}
		if l.FullQty+l.HalfQty > 0 {
			kept = append(kept, l)
		}
	}
	c.lines = kept
}

type fakeOrders struct {
	created   []api.CreateOrderRequest
	confirmed []int64
	order     api.Order
	createErr error
	confirmFn func(id int64) (api.Order, error)
}

func (f *fakeOrders) CreateOrder(_ context.Context, req api.CreateOrderRequest) (api.Order, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return api.Order{}, f.createErr
	}
	order := f.order
	order.PaymentMethod = req.PaymentMethod
	return order, nil
}

func (f *fakeOrders) ConfirmPayment(_ context.Context, id int64) (api.Order, error) {
	f.confirmed = append(f.confirmed, id)
	if f.confirmFn != nil {
		return f.confirmFn(id)
	}
	order := f.order
	order.PaymentStatus = api.PaymentStatusUnpaid
	return order, nil
}

type recordingLauncher struct {
	links []string
}

func (l *recordingLauncher) Launch(_ context.Context, link string) error {
	l.links = append(l.links, link)
	return nil
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return errors.New("broker down")
}

func openStatus() (api.Status, bool) { return api.Status{IsOpen: true}, true }

func strPtr(s string) *string { return &s }

func newTestFlow(c *fakeCart, orders *fakeOrders, opts Options) *Flow {
	return NewFlow(orders, c, openStatus, opts)
}

func toPaymentSelection(t *testing.T, f *Flow) {
	t.Helper()
	if err := f.ReviewCart(); err != nil {
		t.Fatalf("review cart: %v", err)
	}
	if err := f.Checkout("  Asha ", "98-765 43210"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestCashOrderClearsCart(t *testing.T) {
	c := &fakeCart{lines: []cart.Line{{MenuItemID: 3, FullQty: 2, HalfQty: 1}}}
	orders := &fakeOrders{order: api.Order{ID: 17, TotalAmount: 250, PaymentStatus: api.PaymentStatusPending}}
	pub := &recordingPublisher{}
	f := newTestFlow(c, orders, Options{Publisher: pub})

	toPaymentSelection(t, f)
	view, err := f.PayCash(context.Background())
	if err != nil {
		t.Fatalf("pay cash: %v", err)
	}
	if view.State != StateOrderSubmitted {
		t.Fatalf("expected %s, got %s", StateOrderSubmitted, view.State)
	}
	if !view.State.Terminal() {
		t.Fatalf("expected terminal state")
	}
	if c.deducted != 1 || c.TotalItems() != 0 {
		t.Fatalf("expected cart emptied once, got %d", c.deducted)
	}
	req := orders.created[0]
	if req.PaymentMethod != api.PaymentMethodCash || req.CustomerName != "Asha" || req.CustomerPhone != "9876543210" {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(req.Items) != 1 || req.Items[0].FullQty != 2 || req.Items[0].HalfQty != 1 {
		t.Fatalf("unexpected items %+v", req.Items)
	}
	if len(pub.keys) != 1 || pub.keys[0] != EventOrderPlaced {
		t.Fatalf("expected order.placed event, got %v", pub.keys)
	}
	if order, ok := f.LastOrder(); !ok || order.ID != 17 {
		t.Fatalf("expected last order 17, got %+v", order)
	}
}

func TestUPIFlow(t *testing.T) {
	c := &fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}
	orders := &fakeOrders{order: api.Order{ID: 17, TotalAmount: 412.5, MerchantUPI: strPtr("stall@paytm")}}
	launcher := &recordingLauncher{}
	f := newTestFlow(c, orders, Options{Launcher: launcher})

	toPaymentSelection(t, f)
	view, err := f.PayUPI(context.Background())
	if err != nil {
		t.Fatalf("pay upi: %v", err)
	}
	if view.State != StateAwaitingUserConfirmation {
		t.Fatalf("expected %s, got %s", StateAwaitingUserConfirmation, view.State)
	}
	expected := "upi://pay?pa=stall%40paytm&pn=Momo+Stall&am=412.5&cu=INR&tn=Order+17"
	if view.UPILink != expected {
		t.Fatalf("expected %s, got %s", expected, view.UPILink)
	}
	if len(launcher.links) != 1 || launcher.links[0] != expected {
		t.Fatalf("expected launcher handoff, got %v", launcher.links)
	}
	if c.deducted != 0 {
		t.Fatalf("cart must survive until payment is confirmed")
	}

	view, err = f.ConfirmPayment(context.Background())
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if view.State != StatePaymentConfirmed {
		t.Fatalf("expected %s, got %s", StatePaymentConfirmed, view.State)
	}
	if view.Order.PaymentStatus != api.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid after confirmation, got %s", view.Order.PaymentStatus)
	}
	if len(orders.confirmed) != 1 || orders.confirmed[0] != 17 {
		t.Fatalf("expected confirm for order 17, got %v", orders.confirmed)
	}
	if c.deducted != 1 || c.TotalItems() != 0 {
		t.Fatalf("expected cart emptied after confirmation")
	}
}

func TestUPIWithoutMerchantStillAwaitsConfirmation(t *testing.T) {
	c := &fakeCart{lines: []cart.Line{{MenuItemID: 1, HalfQty: 2}}}
	orders := &fakeOrders{order: api.Order{ID: 5, TotalAmount: 80}}
	launcher := &recordingLauncher{}
	f := newTestFlow(c, orders, Options{Launcher: launcher})

	toPaymentSelection(t, f)
	view, err := f.PayUPI(context.Background())
	if err != nil {
		t.Fatalf("pay upi: %v", err)
	}
	if view.UPILink != "" || len(launcher.links) != 0 {
		t.Fatalf("expected no link without merchant upi")
	}
	if view.State != StateAwaitingUserConfirmation {
		t.Fatalf("expected %s, got %s", StateAwaitingUserConfirmation, view.State)
	}
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name   string
		lines  []cart.Line
		status StatusFunc
		first  error
	}{
		{name: "empty cart", lines: nil, status: openStatus, first: ErrCartEmpty},
		{name: "paused", lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}, status: func() (api.Status, bool) {
			return api.Status{IsOpen: false, PauseMessage: "Back soon"}, true
		}, first: ErrStorePaused},
		{name: "unknown status", lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}, status: func() (api.Status, bool) {
			return api.Status{}, false
		}, first: ErrStorePaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow(&fakeOrders{}, &fakeCart{lines: tt.lines}, tt.status, Options{})
			if err := f.ReviewCart(); !errors.Is(err, tt.first) {
				t.Fatalf("expected %v, got %v", tt.first, err)
			}
			if f.State() != StateBrowsing {
				t.Fatalf("expected browsing, got %s", f.State())
			}
		})
	}
}

func TestCheckoutRequiresCustomerDetails(t *testing.T) {
	tests := []struct {
		name  string
		cname string
		phone string
	}{
		{name: "blank name", cname: "   ", phone: "9876543210"},
		{name: "blank phone", cname: "Asha", phone: ""},
		{name: "phone without digits", cname: "Asha", phone: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFlow(&fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}, &fakeOrders{}, Options{})
			if err := f.ReviewCart(); err != nil {
				t.Fatalf("review: %v", err)
			}
			err := f.Checkout(tt.cname, tt.phone)
			var ce *Error
			if !errors.As(err, &ce) || ce.Code != ErrCodeCustomerDetailsRequired {
				t.Fatalf("expected customer details error, got %v", err)
			}
			if f.State() != StateCartReview {
				t.Fatalf("expected cart_review, got %s", f.State())
			}
		})
	}
}

func TestCreateOrderFailureKeepsState(t *testing.T) {
	c := &fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}
	orders := &fakeOrders{createErr: &api.Error{StatusCode: 400, Message: "Restaurant is closed"}}
	f := newTestFlow(c, orders, Options{})

	toPaymentSelection(t, f)
	view, err := f.PayCash(context.Background())
	if err == nil || err.Error() != "Restaurant is closed" {
		t.Fatalf("expected backend message, got %v", err)
	}
	if view.State != StatePaymentMethodSelection || view.Busy {
		t.Fatalf("expected retryable payment selection, got %+v", view)
	}
	if c.deducted != 0 {
		t.Fatalf("cart must be kept on failure")
	}
}

func TestConfirmFailureIsRetryable(t *testing.T) {
	c := &fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}
	calls := 0
	orders := &fakeOrders{order: api.Order{ID: 9, TotalAmount: 100, MerchantUPI: strPtr("m@upi")}}
	orders.confirmFn = func(id int64) (api.Order, error) {
		calls++
		if calls == 1 {
			return api.Order{}, &api.Error{StatusCode: 500, Message: "HTTP error! status: 500"}
		}
		return api.Order{ID: id, PaymentStatus: api.PaymentStatusUnpaid}, nil
	}
	f := newTestFlow(c, orders, Options{})

	toPaymentSelection(t, f)
	if _, err := f.PayUPI(context.Background()); err != nil {
		t.Fatalf("pay upi: %v", err)
	}
	if _, err := f.ConfirmPayment(context.Background()); err == nil {
		t.Fatalf("expected first confirm to fail")
	}
	if f.State() != StateAwaitingUserConfirmation {
		t.Fatalf("expected to remain awaiting confirmation, got %s", f.State())
	}
	if _, err := f.ConfirmPayment(context.Background()); err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if f.State() != StatePaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %s", f.State())
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newTestFlow(&fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}, &fakeOrders{}, Options{})
	ctx := context.Background()

	if _, err := f.PayCash(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for pay from browsing, got %v", err)
	}
	if _, err := f.ConfirmPayment(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for confirm from browsing, got %v", err)
	}
	if err := f.Checkout("Asha", "9876543210"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for checkout from browsing, got %v", err)
	}
	if err := f.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for back from browsing, got %v", err)
	}
}

func TestBackAndReset(t *testing.T) {
	f := newTestFlow(&fakeCart{lines: []cart.Line{{MenuItemID: 1, FullQty: 1}}}, &fakeOrders{}, Options{})
	toPaymentSelection(t, f)

	if err := f.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if f.State() != StateCartReview {
		t.Fatalf("expected cart_review, got %s", f.State())
	}
	if err := f.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if f.State() != StateBrowsing {
		t.Fatalf("expected browsing, got %s", f.State())
	}

	toPaymentSelection(t, f)
	if err := f.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	view := f.View()
	if view.State != StateBrowsing || view.CustomerName != "" {
		t.Fatalf("expected clean browsing view, got %+v", view)
	}
}

func TestEstimateTotal(t *testing.T) {
	menu := []api.MenuItem{
		{ID: 1, PriceFull: 120, PriceHalf: 70},
		{ID: 2, PriceFull: 90, PriceHalf: 50},
	}
	lines := []cart.Line{
		{MenuItemID: 1, FullQty: 2, HalfQty: 1},
		{MenuItemID: 2, HalfQty: 3},
		{MenuItemID: 99, FullQty: 4},
	}
	if got := EstimateTotal(menu, lines); got != 460 {
		t.Fatalf("expected 460, got %v", got)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "98765 43210", want: "9876543210"},
		{in: "+91 98765 43210", want: "9198765432"},
		{in: "abc", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

type blockingOrders struct {
	started chan api.CreateOrderRequest
	release chan struct{}
}

func (b *blockingOrders) CreateOrder(_ context.Context, req api.CreateOrderRequest) (api.Order, error) {
	b.started <- req
	<-b.release
	return api.Order{ID: 21, TotalAmount: 120, PaymentMethod: req.PaymentMethod}, nil
}

func (b *blockingOrders) ConfirmPayment(_ context.Context, id int64) (api.Order, error) {
	return api.Order{ID: id, PaymentStatus: api.PaymentStatusUnpaid}, nil
}

func TestItemsAddedDuringSubmissionStayInCart(t *testing.T) {
	for _, method := range []string{api.PaymentMethodCash, api.PaymentMethodUPI} {
		t.Run(method, func(t *testing.T) {
			ctx := context.Background()
			store := cart.NewStore(ctx, nil, "momo_cart", nil)
			if err := store.Add(ctx, 5, cart.PortionFull); err != nil {
				t.Fatalf("add: %v", err)
			}
			orders := &blockingOrders{started: make(chan api.CreateOrderRequest, 1), release: make(chan struct{})}
			f := NewFlow(orders, store, openStatus, Options{})
			if err := f.ReviewCart(); err != nil {
				t.Fatalf("review cart: %v", err)
			}
			if err := f.Checkout("Asha", "9876543210"); err != nil {
				t.Fatalf("checkout: %v", err)
			}

			done := make(chan error, 1)
			go func() {
				var err error
				if method == api.PaymentMethodCash {
					_, err = f.PayCash(ctx)
				} else {
					_, err = f.PayUPI(ctx)
				}
				done <- err
			}()

			req := <-orders.started
			if err := store.Add(ctx, 7, cart.PortionHalf); err != nil {
				t.Fatalf("add during submission: %v", err)
			}
			if err := store.Add(ctx, 5, cart.PortionFull); err != nil {
				t.Fatalf("add during submission: %v", err)
			}
			close(orders.release)
			if err := <-done; err != nil {
				t.Fatalf("pay: %v", err)
			}
			if method == api.PaymentMethodUPI {
				if _, err := f.ConfirmPayment(ctx); err != nil {
					t.Fatalf("confirm: %v", err)
				}
			}

			if len(req.Items) != 1 || req.Items[0].MenuItemID != 5 || req.Items[0].FullQty != 1 {
				t.Fatalf("unexpected items %+v", req.Items)
			}
			if got := store.Quantity(7, cart.PortionHalf); got != 1 {
				t.Fatalf("expected 1, got %d", got)
			}
			if got := store.Quantity(5, cart.PortionFull); got != 1 {
				t.Fatalf("expected 1, got %d", got)
			}
			if got := store.TotalItems(); got != 2 {
				t.Fatalf("expected 2, got %d", got)
			}
		})
	}
}

package checkout

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/upi"

	"go.uber.org/zap"
)

type State string

const (
	StateBrowsing                 State = "browsing"
	StateCartReview               State = "cart_review"
	StatePaymentMethodSelection   State = "payment_method_selection"
	StateOrderSubmitted           State = "order_submitted"
	StateAwaitingUserConfirmation State = "awaiting_user_confirmation"
	StatePaymentConfirmed         State = "payment_confirmed"
)

// Terminal reports whether the flow has finished and only Reset applies.
func (s State) Terminal() bool {
	return s == StateOrderSubmitted || s == StatePaymentConfirmed
}

const (
	EventOrderPlaced      = "order.placed"
	EventPaymentConfirmed = "payment.confirmed"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (api.Order, error)
	ConfirmPayment(ctx context.Context, orderID int64) (api.Order, error)
}

type Cart interface {
	TotalItems() int
	Lines() []cart.Line
	Deduct(ctx context.Context, lines []cart.Line)
}

// StatusFunc returns the last known store status; ok is false before the first load.
type StatusFunc func() (status api.Status, ok bool)

// Launcher hands a UPI deep link to whatever can open a payment app.
type Launcher interface {
	Launch(ctx context.Context, link string) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       int64     `json:"orderId"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalAmount   float64   `json:"totalAmount"`
	CustomerName  string    `json:"customerName"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// View is a read-only copy of the flow for presentation.
type View struct {
	State         State      `json:"state"`
	Busy          bool       `json:"busy"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Order         *api.Order `json:"order,omitempty"`
	Amount        float64    `json:"amount"`
	MerchantUPI   string     `json:"merchant_upi,omitempty"`
	MerchantName  string     `json:"merchant_name,omitempty"`
	UPILink       string     `json:"upi_link,omitempty"`
}

type Options struct {
	MerchantName string
	Launcher     Launcher
	Publisher    Publisher
	Logger       *zap.Logger
	// OnChange runs after every successful transition, outside the flow lock.
	OnChange func()
}

// Flow sequences cart contents into an order and, for UPI, a payment confirmation.
type Flow struct {
	api    OrderAPI
	cart   Cart
	status StatusFunc
	opts   Options
	logger *zap.Logger

	mu   sync.RWMutex
	view View

	// submitted holds the cart lines of the order awaiting UPI confirmation.
	submitted []cart.Line
}

func NewFlow(orders OrderAPI, c Cart, status StatusFunc, opts Options) *Flow {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MerchantName == "" {
		opts.MerchantName = "Momo Stall"
	}
	return &Flow{
		api:    orders,
		cart:   c,
		status: status,
		opts:   opts,
		logger: logger,
		view:   View{State: StateBrowsing},
	}
}

func (f *Flow) View() View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v := f.view
	if v.Order != nil {
		order := *v.Order
		v.Order = &order
	}
	return v
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.view.State
}

// LastOrder returns the order created by this flow, if any.
func (f *Flow) LastOrder() (api.Order, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.view.Order == nil {
		return api.Order{}, false
	}
	return *f.view.Order, true
}

func (f *Flow) paused() bool {
	if f.status == nil {
		return true
	}
	st, ok := f.status()
	return !ok || !st.IsOpen
}

func (f *Flow) changed() {
	if f.opts.OnChange != nil {
		f.opts.OnChange()
	}
}

// transition applies fn under the lock unless a submission is in flight.
func (f *Flow) transition(fn func() error) error {
	f.mu.Lock()
	if f.view.Busy {
		f.mu.Unlock()
		return ErrBusy
	}
	err := fn()
	f.mu.Unlock()
	if err == nil {
		f.changed()
	}
	return err
}

// ReviewCart opens the cart from the menu.
func (f *Flow) ReviewCart() error {
	return f.transition(func() error {
		if f.view.State != StateBrowsing {
			return ErrInvalidTransition
		}
		if f.paused() {
			return ErrStorePaused
		}
		if f.cart.TotalItems() == 0 {
			return ErrCartEmpty
		}
		f.view.State = StateCartReview
		return nil
	})
}

// Back moves one step towards the menu. Leaving the UPI confirmation screen keeps the
// created order on the server and the cart intact.
func (f *Flow) Back() error {
	return f.transition(func() error {
		switch f.view.State {
		case StateCartReview:
			f.view.State = StateBrowsing
		case StatePaymentMethodSelection:
			f.view.State = StateCartReview
		case StateAwaitingUserConfirmation:
			f.view = View{
				State:         StateCartReview,
				CustomerName:  f.view.CustomerName,
				CustomerPhone: f.view.CustomerPhone,
				Order:         f.view.Order,
			}
		default:
			return ErrInvalidTransition
		}
		return nil
	})
}

// Checkout validates the guards and moves to payment method selection.
func (f *Flow) Checkout(name, phone string) error {
	return f.transition(func() error {
		if f.view.State != StateCartReview {
			return ErrInvalidTransition
		}
		if f.cart.TotalItems() == 0 {
			return ErrCartEmpty
		}
		if f.paused() {
			return ErrStorePaused
		}
		name = strings.TrimSpace(name)
		phone = NormalizePhone(phone)
		if name == "" || phone == "" {
			return ErrCustomerDetailsRequired
		}
		f.view.CustomerName = name
		f.view.CustomerPhone = phone
		f.view.State = StatePaymentMethodSelection
		return nil
	})
}

// Reset returns to the menu and forgets customer details. The cart is untouched.
func (f *Flow) Reset() error {
	return f.transition(func() error {
		f.view = View{State: StateBrowsing}
		f.submitted = nil
		return nil
	})
}

// begin marks the flow busy if it is in the expected state and returns the customer
// details captured at checkout.
func (f *Flow) begin(expected State) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view.Busy {
		return View{}, ErrBusy
	}
	if f.view.State != expected {
		return View{}, ErrInvalidTransition
	}
	f.view.Busy = true
	return f.view, nil
}

func (f *Flow) finish(apply func(v *View)) View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view.Busy = false
	if apply != nil {
		apply(&f.view)
	}
	return f.view
}

// submit creates the order from the cart as it is now. The returned lines are what was
// ordered; only those are later taken out of the cart.
func (f *Flow) submit(ctx context.Context, method string) (api.Order, []cart.Line, error) {
	current, err := f.begin(StatePaymentMethodSelection)
	if err != nil {
		return api.Order{}, nil, err
	}
	lines := f.cart.Lines()
	if len(lines) == 0 {
		f.finish(nil)
		return api.Order{}, nil, ErrCartEmpty
	}
	items := make([]api.OrderLine, 0, len(lines))
	for _, l := range lines {
		items = append(items, api.OrderLine{MenuItemID: l.MenuItemID, FullQty: l.FullQty, HalfQty: l.HalfQty})
	}

	order, err := f.api.CreateOrder(ctx, api.CreateOrderRequest{
		Items:         items,
		PaymentMethod: method,
		CustomerName:  current.CustomerName,
		CustomerPhone: current.CustomerPhone,
	})
	if err != nil {
		f.logger.Warn("error creating order", zap.String("paymentMethod", method), zap.Error(err))
		f.finish(nil)
		return api.Order{}, nil, err
	}
	return order, lines, nil
}

// PayCash submits a cash order. Success is terminal and removes the ordered lines from
// the cart.
func (f *Flow) PayCash(ctx context.Context) (View, error) {
	order, lines, err := f.submit(ctx, api.PaymentMethodCash)
	if err != nil {
		return f.View(), err
	}

	f.cart.Deduct(ctx, lines)
	view := f.finish(func(v *View) {
		v.State = StateOrderSubmitted
		v.PaymentMethod = api.PaymentMethodCash
		v.Order = &order
		v.Amount = order.TotalAmount
	})
	f.changed()
	f.logger.Info("order placed", zap.Int64("orderId", order.ID), zap.String("paymentMethod", api.PaymentMethodCash))
	f.publish(ctx, EventOrderPlaced, order)
	return view, nil
}

// PayUPI submits a UPI order, hands the deep link to the launcher and waits for the
// customer to assert payment via ConfirmPayment.
func (f *Flow) PayUPI(ctx context.Context) (View, error) {
	order, lines, err := f.submit(ctx, api.PaymentMethodUPI)
	if err != nil {
		return f.View(), err
	}

	merchantUPI := ""
	if order.MerchantUPI != nil {
		merchantUPI = strings.TrimSpace(*order.MerchantUPI)
	}
	link := ""
	if merchantUPI != "" {
		link, err = upi.Link(upi.Payment{
			PayeeVPA:  merchantUPI,
			PayeeName: f.opts.MerchantName,
			Amount:    order.TotalAmount,
			OrderID:   order.ID,
		})
		if err != nil {
			f.logger.Warn("error building upi link", zap.Int64("orderId", order.ID), zap.Error(err))
		}
	} else {
		f.logger.Warn("merchant upi not found in order response", zap.Int64("orderId", order.ID))
	}

	view := f.finish(func(v *View) {
		f.submitted = lines
		v.State = StateAwaitingUserConfirmation
		v.PaymentMethod = api.PaymentMethodUPI
		v.Order = &order
		v.Amount = order.TotalAmount
		v.MerchantUPI = merchantUPI
		v.MerchantName = f.opts.MerchantName
		v.UPILink = link
	})
	f.changed()
	f.publish(ctx, EventOrderPlaced, order)

	if link != "" && f.opts.Launcher != nil {
		if err := f.opts.Launcher.Launch(ctx, link); err != nil {
			f.logger.Warn("upi handoff failed", zap.Int64("orderId", order.ID), zap.Error(err))
		}
	}
	return view, nil
}

// ConfirmPayment records the customer's claim that the UPI payment was made. Nothing
// verifies the payment itself.
func (f *Flow) ConfirmPayment(ctx context.Context) (View, error) {
	current, err := f.begin(StateAwaitingUserConfirmation)
	if err != nil {
		return f.View(), err
	}
	if current.Order == nil {
		f.finish(nil)
		return f.View(), ErrInvalidTransition
	}

	order, err := f.api.ConfirmPayment(ctx, current.Order.ID)
	if err != nil {
		f.logger.Warn("error confirming payment", zap.Int64("orderId", current.Order.ID), zap.Error(err))
		f.finish(nil)
		return f.View(), err
	}
	if order.ID == 0 {
		order = *current.Order
	}

	f.mu.RLock()
	lines := f.submitted
	f.mu.RUnlock()
	f.cart.Deduct(ctx, lines)
	view := f.finish(func(v *View) {
		f.submitted = nil
		v.State = StatePaymentConfirmed
		v.Order = &order
	})
	f.changed()
	f.logger.Info("upi payment confirmed by customer", zap.Int64("orderId", order.ID))
	f.publish(ctx, EventPaymentConfirmed, order)
	return view, nil
}

func (f *Flow) publish(ctx context.Context, eventType string, order api.Order) {
	if f.opts.Publisher == nil {
		return
	}
	name := ""
	if order.CustomerName != nil {
		name = *order.CustomerName
	}
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		CustomerName:  name,
		OccurredAt:    time.Now().UTC(),
	}
	if err := f.opts.Publisher.Publish(ctx, eventType, event); err != nil {
		f.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

// EstimateTotal prices cart lines against the menu. Lines whose item is not on the menu
// contribute nothing; the server computes the authoritative total.
func EstimateTotal(menu []api.MenuItem, lines []cart.Line) float64 {
	prices := make(map[int64]api.MenuItem, len(menu))
	for _, item := range menu {
		prices[item.ID] = item
	}
	total := 0.0
	for _, line := range lines {
		item, ok := prices[line.MenuItemID]
		if !ok {
			continue
		}
		total += item.PriceFull * float64(line.FullQty)
		total += item.PriceHalf * float64(line.HalfQty)
	}
	return total
}

// NormalizePhone keeps digits only, at most ten of them.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
			if b.Len() == 10 {
				break
			}
		}
	}
	return b.String()
}

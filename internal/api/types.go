package api

import "time"

const (
	PaymentMethodCash = "cash"
	PaymentMethodUPI  = "upi"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	// PaymentStatusUnpaid is what the backend writes when a customer asserts a UPI payment.
	PaymentStatusUnpaid = "unpaid"

	OrderStatusNew       = "new"
	OrderStatusPreparing = "preparing"
	OrderStatusServed    = "served"
)

type Status struct {
	IsOpen       bool   `json:"is_open"`
	PauseMessage string `json:"pause_message"`
}

type MenuItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	PriceFull   float64 `json:"price_full"`
	PriceHalf   float64 `json:"price_half"`
	IsAvailable bool    `json:"is_available"`
}

type UniversalItem struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	PriceFull float64 `json:"price_full"`
	PriceHalf float64 `json:"price_half"`
	InMenu    bool    `json:"in_menu"`
}

type Merchant struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UPIID    string `json:"upi_id"`
	IsActive bool   `json:"is_active"`
}

// OrderLine is one requested menu item with its portion counts.
type OrderLine struct {
	MenuItemID int64 `json:"menu_item_id"`
	FullQty    int   `json:"full_qty"`
	HalfQty    int   `json:"half_qty"`
}

type CreateOrderRequest struct {
	Items         []OrderLine `json:"items"`
	PaymentMethod string      `json:"payment_method"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
}

type OrderItem struct {
	ID            int64   `json:"id"`
	MenuItemID    int64   `json:"menu_item_id"`
	MenuItemName  *string `json:"menu_item_name"`
	FullQty       int     `json:"full_qty"`
	HalfQty       int     `json:"half_qty"`
	DeliveredFull int     `json:"delivered_full"`
	DeliveredHalf int     `json:"delivered_half"`
}

func (i OrderItem) Delivered() bool {
	return i.DeliveredFull >= i.FullQty && i.DeliveredHalf >= i.HalfQty
}

type Order struct {
	ID            int64       `json:"id"`
	Timestamp     string      `json:"timestamp"`
	PaymentMethod string      `json:"payment_method"`
	PaymentStatus string      `json:"payment_status"`
	OrderStatus   string      `json:"order_status"`
	TotalAmount   float64     `json:"total_amount"`
	MerchantUPIID *int64      `json:"merchant_upi_id"`
	MerchantUPI   *string     `json:"merchant_upi"`
	CustomerName  *string     `json:"customer_name"`
	CustomerPhone *string     `json:"customer_phone"`
	Items         []OrderItem `json:"items"`
}

// FullyDelivered mirrors the backend rule: at least one line and every line delivered.
func (o Order) FullyDelivered() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if !item.Delivered() {
			return false
		}
	}
	return true
}

func (o Order) Item(id int64) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OrderItem{}, false
}

// PlacedAt parses the backend's naive ISO timestamp. Zero time when absent or malformed.
func (o Order) PlacedAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, o.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

type OrderResponse struct {
	Success bool   `json:"success"`
	Order   Order  `json:"order"`
	Message string `json:"message"`
}

// OrderUpdate is the PATCH /admin/order/{id} body. Nil fields are omitted.
type OrderUpdate struct {
	PaymentStatus *string           `json:"payment_status,omitempty"`
	OrderStatus   *string           `json:"order_status,omitempty"`
	Items         []OrderItemUpdate `json:"items,omitempty"`
}

type OrderItemUpdate struct {
	ID            int64 `json:"id"`
	DeliveredFull *int  `json:"delivered_full,omitempty"`
	DeliveredHalf *int  `json:"delivered_half,omitempty"`
}

type StatusUpdate struct {
	IsOpen       *bool   `json:"is_open,omitempty"`
	PauseMessage *string `json:"pause_message,omitempty"`
}

type MenuItemUpdate struct {
	IsAvailable *bool    `json:"is_available,omitempty"`
	PriceFull   *float64 `json:"price_full,omitempty"`
	PriceHalf   *float64 `json:"price_half,omitempty"`
}

type AddMenuItemRequest struct {
	Name      string   `json:"name"`
	PriceFull *float64 `json:"price_full,omitempty"`
	PriceHalf *float64 `json:"price_half,omitempty"`
}

type AdminUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Admin   AdminUser `json:"admin"`
}

package receipt

import (
	"bytes"
	"errors"
	"testing"

	"momo-storefront/internal/api"
)

func TestRender(t *testing.T) {
	name := "Veg Momo"
	customer := "Asha"
	upi := "stall@paytm"
	out, err := Render(Data{
		MerchantName: "Momo Stall",
		Order: api.Order{
			ID:            17,
			Timestamp:     "2025-03-07T09:30:00.123456",
			PaymentMethod: api.PaymentMethodUPI,
			PaymentStatus: api.PaymentStatusUnpaid,
			TotalAmount:   310,
			CustomerName:  &customer,
			MerchantUPI:   &upi,
			Items: []api.OrderItem{
				{ID: 1, MenuItemID: 1, MenuItemName: &name, FullQty: 2, HalfQty: 1},
				{ID: 2, MenuItemID: 9, HalfQty: 1},
			},
		},
		Menu: []api.MenuItem{{ID: 1, Name: "Veg Momo", PriceFull: 120, PriceHalf: 70}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected pdf output")
	}
}

func TestRenderRequiresOrder(t *testing.T) {
	if _, err := Render(Data{}); !errors.Is(err, ErrNoOrder) {
		t.Fatalf("expected ErrNoOrder, got %v", err)
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatAmount(412.5); got != "Rs. 412.50" {
		t.Fatalf("expected Rs. 412.50, got %s", got)
	}
	if got := Filename(17); got != "momo_order_17.pdf" {
		t.Fatalf("expected momo_order_17.pdf, got %s", got)
	}
	if got := lineText(2, "Veg Momo", "Full", 120, true); got != "2x Veg Momo (Full)  Rs. 240.00" {
		t.Fatalf("unexpected line %q", got)
	}
}

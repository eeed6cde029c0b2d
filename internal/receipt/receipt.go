package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"momo-storefront/internal/api"

	"github.com/phpdave11/gofpdf"
)

var ErrNoOrder = errors.New("no order to print")

// Data is what a receipt prints. Menu supplies names and prices for line subtotals;
// lines without a menu match are printed without one.
type Data struct {
	MerchantName string
	Order        api.Order
	Menu         []api.MenuItem
}

// Filename is the download name for an order's receipt.
func Filename(orderID int64) string {
	return fmt.Sprintf("momo_order_%d.pdf", orderID)
}

// Render produces a single-page A4 receipt.
func Render(data Data) (*bytes.Buffer, error) {
	if data.Order.ID == 0 {
		return nil, ErrNoOrder
	}
	merchant := strings.TrimSpace(data.MerchantName)
	if merchant == "" {
		merchant = "Momo Stall"
	}
	menu := make(map[int64]api.MenuItem, len(data.Menu))
	for _, item := range data.Menu {
		menu[item.ID] = item
	}
	order := data.Order

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, merchant, "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order #%d", order.ID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if placed := order.PlacedAt(); !placed.IsZero() {
		pdf.CellFormat(0, 5, fmt.Sprintf("Placed: %s", placed.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	}
	if name := deref(order.CustomerName); name != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Customer: %s", name), "", 1, "C", false, 0, "")
	}
	if phone := deref(order.CustomerPhone); phone != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Phone: %s", phone), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range order.Items {
		item, known := menu[line.MenuItemID]
		name := deref(line.MenuItemName)
		if name == "" && known {
			name = item.Name
		}
		if name == "" {
			name = fmt.Sprintf("Item #%d", line.MenuItemID)
		}
		if line.FullQty > 0 {
			pdf.CellFormat(0, 5, lineText(line.FullQty, name, "Full", item.PriceFull, known), "", 1, "L", false, 0, "")
		}
		if line.HalfQty > 0 {
			pdf.CellFormat(0, 5, lineText(line.HalfQty, name, "Half", item.PriceHalf, known), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", FormatAmount(order.TotalAmount)), "B", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 9)
	if order.PaymentMethod != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Payment: %s", strings.ToUpper(order.PaymentMethod)), "", 1, "L", false, 0, "")
	}
	if order.PaymentStatus != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", order.PaymentStatus), "", 1, "L", false, 0, "")
	}
	if upi := deref(order.MerchantUPI); upi != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Paid to: %s", upi), "", 1, "L", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func lineText(qty int, name, portion string, price float64, priced bool) string {
	if !priced {
		return fmt.Sprintf("%dx %s (%s)", qty, name, portion)
	}
	return fmt.Sprintf("%dx %s (%s)  %s", qty, name, portion, FormatAmount(price*float64(qty)))
}

// FormatAmount renders rupees for the core PDF fonts, which lack the rupee sign.
func FormatAmount(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

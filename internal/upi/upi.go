// Package upi builds UPI payment deep links.
package upi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const currency = "INR"

var ErrMissingPayee = errors.New("merchant upi id is required")

type Payment struct {
	PayeeVPA  string
	PayeeName string
	Amount    float64
	OrderID   int64
}

// Link returns upi://pay?pa=..&pn=..&am=..&cu=INR&tn=Order+<id>. Parameters keep
// this order; some payment apps are picky about it.
func Link(p Payment) (string, error) {
	vpa := strings.TrimSpace(p.PayeeVPA)
	if vpa == "" {
		return "", ErrMissingPayee
	}
	params := [][2]string{
		{"pa", vpa},
		{"pn", p.PayeeName},
		{"am", strconv.FormatFloat(p.Amount, 'f', -1, 64)},
		{"cu", currency},
		{"tn", fmt.Sprintf("Order %d", p.OrderID)},
	}
	parts := make([]string, 0, len(params))
	for _, kv := range params {
		parts = append(parts, url.QueryEscape(kv[0])+"="+url.QueryEscape(kv[1]))
	}
	return "upi://pay?" + strings.Join(parts, "&"), nil
}

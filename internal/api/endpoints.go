package api

import (
	"context"
	"fmt"
	"net/http"
)

const adminUsername = "admin"

// Public endpoints.

func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) GetMenu(ctx context.Context) ([]MenuItem, error) {
	var out []MenuItem
	err := c.do(ctx, http.MethodGet, "/menu", nil, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/order", req, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, orderID int64) (Order, error) {
	var out OrderResponse
	body := map[string]int64{"order_id": orderID}
	if err := c.do(ctx, http.MethodPost, "/payment/confirm", body, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

// Admin endpoints. They rely on the session cookie stored by Login.

func (c *Client) Login(ctx context.Context, password string) (AdminUser, error) {
	var out LoginResponse
	body := map[string]string{"username": adminUsername, "password": password}
	if err := c.do(ctx, http.MethodPost, "/admin/login", body, &out); err != nil {
		return AdminUser{}, err
	}
	return out.Admin, nil
}

func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, http.MethodGet, "/admin/orders", nil, &out)
	return out, err
}

func (c *Client) GetDeliveredOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := c.do(ctx, http.MethodGet, "/admin/orders/delivered", nil, &out)
	return out, err
}

func (c *Client) UpdateOrder(ctx context.Context, orderID int64, update OrderUpdate) (Order, error) {
	var out OrderResponse
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/admin/order/%d", orderID), update, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

func (c *Client) UpdateStatus(ctx context.Context, update StatusUpdate) (Status, error) {
	var out struct {
		Status Status `json:"status"`
	}
	if err := c.do(ctx, http.MethodPatch, "/admin/status", update, &out); err != nil {
		return Status{}, err
	}
	return out.Status, nil
}

func (c *Client) GetMerchants(ctx context.Context) ([]Merchant, error) {
	var out []Merchant
	err := c.do(ctx, http.MethodGet, "/admin/merchants", nil, &out)
	return out, err
}

func (c *Client) ActivateMerchant(ctx context.Context, merchantID int64) (Merchant, error) {
	var out struct {
		Merchant Merchant `json:"merchant"`
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/admin/merchant/%d/activate", merchantID), nil, &out); err != nil {
		return Merchant{}, err
	}
	return out.Merchant, nil
}

func (c *Client) GetMenuItems(ctx context.Context) ([]MenuItem, error) {
	var out []MenuItem
	err := c.do(ctx, http.MethodGet, "/admin/menu", nil, &out)
	return out, err
}

func (c *Client) UpdateMenuItem(ctx context.Context, itemID int64, update MenuItemUpdate) (MenuItem, error) {
	var out struct {
		Item MenuItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/admin/menu/%d", itemID), update, &out); err != nil {
		return MenuItem{}, err
	}
	return out.Item, nil
}

func (c *Client) AddMenuItem(ctx context.Context, req AddMenuItemRequest) (MenuItem, error) {
	var out struct {
		Item MenuItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/menu/add", req, &out); err != nil {
		return MenuItem{}, err
	}
	return out.Item, nil
}

func (c *Client) GetUniversalItems(ctx context.Context) ([]UniversalItem, error) {
	var out []UniversalItem
	err := c.do(ctx, http.MethodGet, "/admin/universal-items", nil, &out)
	return out, err
}

// ExportDatabase downloads the backend's spreadsheet export.
func (c *Client) ExportDatabase(ctx context.Context) ([]byte, string, error) {
	return c.doRaw(ctx, http.MethodGet, "/admin/export-db")
}

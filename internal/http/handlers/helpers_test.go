package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/checkout"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func TestWriteError(t *testing.T) {
	h := &Handler{Logger: zap.NewNop()}

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "checkout guard", err: checkout.ErrStorePaused, status: http.StatusConflict, code: "STORE_PAUSED"},
		{name: "wrapped checkout guard", err: fmt.Errorf("pay: %w", checkout.ErrCartEmpty), status: http.StatusBadRequest, code: "CART_EMPTY"},
		{name: "backend rejection", err: &api.Error{StatusCode: http.StatusNotFound, Message: "Order not found"}, status: http.StatusNotFound, code: "BACKEND_ERROR"},
		{name: "transport failure", err: fmt.Errorf("%w: GET /menu", api.ErrTransport), status: http.StatusBadGateway, code: "BACKEND_UNAVAILABLE"},
		{name: "not logged in", err: admin.ErrNotLoggedIn, status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "missing order", err: admin.ErrOrderNotFound, status: http.StatusNotFound, code: "ORDER_NOT_FOUND"},
		{name: "missing line", err: admin.ErrLineNotFound, status: http.StatusNotFound, code: "LINE_NOT_FOUND"},
		{name: "cart portion", err: cart.ErrInvalidPortion, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "negative price", err: admin.ErrNegativePrice, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Error != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, body.Error)
			}
		})
	}
}

func TestDecodeBody(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeBody(empty, &dst); err != nil {
		t.Fatalf("expected empty body to be accepted, got %v", err)
	}

	valid := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Asha"}`))
	if err := decodeBody(valid, &dst); err != nil || dst.Name != "Asha" {
		t.Fatalf("expected Asha, got %q (%v)", dst.Name, err)
	}

	broken := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	if err := decodeBody(broken, &dst); err == nil {
		t.Fatalf("expected an error for a truncated body")
	}
}

func TestReadPathInt64(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		want    int64
		wantErr bool
	}{
		{name: "plain", value: "12", want: 12},
		{name: "trailing junk", value: "12abc", wantErr: true},
		{name: "spaces", value: " 12", wantErr: true},
		{name: "not a number", value: "abc", wantErr: true},
		{name: "missing", value: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("itemID", tc.value)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := readPathInt64(r, "itemID")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q, got %d", tc.value, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %d, got %d (%v)", tc.want, got, err)
			}
		})
	}
}

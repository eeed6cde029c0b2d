package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/checkout"
	"momo-storefront/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errMissingParam = errors.New("missing param")

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	return strconv.ParseInt(value, 10, 64)
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeError maps domain errors onto the local API's error envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var flowErr *checkout.Error
	var apiErr *api.Error
	switch {
	case errors.As(err, &flowErr):
		response.Error(w, flowErr.StatusCode, string(flowErr.Code), flowErr.Message)
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		response.Error(w, status, "BACKEND_ERROR", apiErr.Message)
	case errors.Is(err, api.ErrTransport):
		response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "Could not reach the order server")
	case errors.Is(err, admin.ErrNotLoggedIn):
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Admin login required")
	case errors.Is(err, admin.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, admin.ErrLineNotFound):
		response.Error(w, http.StatusNotFound, "LINE_NOT_FOUND", "Order line not found")
	case errors.Is(err, admin.ErrMenuItemNotFound):
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
	case errors.Is(err, admin.ErrInvalidPortion), errors.Is(err, cart.ErrInvalidPortion):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "portion must be full or half")
	case errors.Is(err, admin.ErrNameRequired):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item name is required")
	case errors.Is(err, admin.ErrNegativePrice):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Prices must not be negative")
	default:
		h.Logger.Error("unhandled error", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

package handlers

import (
	"net/http"

	"momo-storefront/internal/api"
	"momo-storefront/internal/cart"
	"momo-storefront/pkg/response"
)

func (h *Handler) StorefrontGet(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Portal.Snapshot())
}

// StorefrontReload is the retry behind the load-error screen.
func (h *Handler) StorefrontReload(w http.ResponseWriter, r *http.Request) {
	if err := h.Portal.Load(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Portal.Snapshot())
}

func (h *Handler) CartGet(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Portal.Cart().Snapshot())
}

type cartAddRequest struct {
	MenuItemID int64  `json:"menu_item_id"`
	Portion    string `json:"portion"`
}

func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	var body cartAddRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	portion, err := cart.ParsePortion(body.Portion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.orderable(w, body.MenuItemID) {
		return
	}
	if err := h.Portal.Cart().Add(r.Context(), body.MenuItemID, portion); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Portal.Cart().Snapshot())
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) CartSetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, portion, ok := h.readCartPath(w, r)
	if !ok {
		return
	}
	var body cartQuantityRequest
	if err := decodeBody(r, &body); err != nil || body.Quantity < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "quantity must be zero or more")
		return
	}
	if body.Quantity > 0 && !h.orderable(w, itemID) {
		return
	}
	if err := h.Portal.Cart().SetQuantity(r.Context(), itemID, portion, body.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Portal.Cart().Snapshot())
}

// CartRemove takes one portion off the line, dropping the line once both counts reach zero.
func (h *Handler) CartRemove(w http.ResponseWriter, r *http.Request) {
	itemID, portion, ok := h.readCartPath(w, r)
	if !ok {
		return
	}
	if err := h.Portal.Cart().Remove(r.Context(), itemID, portion); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Portal.Cart().Snapshot())
}

func (h *Handler) CartClear(w http.ResponseWriter, r *http.Request) {
	h.Portal.Cart().Clear(r.Context())
	response.Success(w, h.Portal.Cart().Snapshot())
}

func (h *Handler) readCartPath(w http.ResponseWriter, r *http.Request) (int64, cart.Portion, bool) {
	itemID, err := readPathInt64(r, "itemID")
	if err != nil || itemID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return 0, "", false
	}
	portion, err := cart.ParsePortion(readPathString(r, "portion"))
	if err != nil {
		h.writeError(w, err)
		return 0, "", false
	}
	return itemID, portion, true
}

// orderable rejects items that are missing from the loaded menu or marked unavailable.
func (h *Handler) orderable(w http.ResponseWriter, itemID int64) bool {
	item, ok := findMenuItem(h.Portal.Menu(), itemID)
	if !ok {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return false
	}
	if !item.IsAvailable {
		response.Error(w, http.StatusConflict, "ITEM_UNAVAILABLE", item.Name+" is not available right now")
		return false
	}
	return true
}

func findMenuItem(menu []api.MenuItem, itemID int64) (api.MenuItem, bool) {
	for _, item := range menu {
		if item.ID == itemID {
			return item, true
		}
	}
	return api.MenuItem{}, false
}

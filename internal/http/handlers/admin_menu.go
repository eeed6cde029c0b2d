package handlers

import (
	"net/http"

	"momo-storefront/pkg/response"
)

func (h *Handler) AdminMenuGet(w http.ResponseWriter, r *http.Request) {
	menu, err := h.Dashboard.LoadMenu(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, map[string]any{
		"items":     menu.Items,
		"universal": menu.Universal,
		"addable":   menu.Addable(),
	})
}

func (h *Handler) AdminMenuToggleAvailability(w http.ResponseWriter, r *http.Request) {
	itemID, err := readPathInt64(r, "itemID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid menu item id")
		return
	}
	menu, err := h.Dashboard.ToggleItemAvailability(r.Context(), itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, menu)
}

type menuAddRequest struct {
	Name      string   `json:"name"`
	PriceFull *float64 `json:"price_full"`
	PriceHalf *float64 `json:"price_half"`
}

// AdminMenuAdd puts a universal item on the menu. Omitted prices keep the universal ones.
func (h *Handler) AdminMenuAdd(w http.ResponseWriter, r *http.Request) {
	var body menuAddRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	menu, err := h.Dashboard.AddFromUniversal(r.Context(), body.Name, body.PriceFull, body.PriceHalf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, menu)
}

func (h *Handler) AdminExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.Dashboard.Export(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if export.ArchiveURL != "" {
		w.Header().Set("X-Archive-Url", export.ArchiveURL)
	}
	response.File(w, export.ContentType, export.Filename, export.Data, false)
}

func (h *Handler) AdminExportArchives(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Dashboard.Archives(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, map[string]any{"keys": keys})
}

package handlers

import (
	"net/http"

	"momo-storefront/internal/receipt"
	"momo-storefront/pkg/response"

	"go.uber.org/zap"
)

func (h *Handler) CheckoutGet(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Portal.Checkout().View())
}

func (h *Handler) CheckoutReview(w http.ResponseWriter, r *http.Request) {
	h.checkoutStep(w, h.Portal.Checkout().ReviewCart)
}

func (h *Handler) CheckoutBack(w http.ResponseWriter, r *http.Request) {
	h.checkoutStep(w, h.Portal.Checkout().Back)
}

func (h *Handler) CheckoutReset(w http.ResponseWriter, r *http.Request) {
	h.checkoutStep(w, h.Portal.Checkout().Reset)
}

type checkoutDetailsRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// CheckoutDetails records the customer's name and phone and moves on to payment selection.
func (h *Handler) CheckoutDetails(w http.ResponseWriter, r *http.Request) {
	var body checkoutDetailsRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	flow := h.Portal.Checkout()
	h.checkoutStep(w, func() error {
		return flow.Checkout(body.CustomerName, body.CustomerPhone)
	})
}

func (h *Handler) CheckoutPayCash(w http.ResponseWriter, r *http.Request) {
	view, err := h.Portal.Checkout().PayCash(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.SuccessMessage(w, view, "Order placed. Please pay at the counter.")
}

func (h *Handler) CheckoutPayUPI(w http.ResponseWriter, r *http.Request) {
	view, err := h.Portal.Checkout().PayUPI(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, view)
}

func (h *Handler) CheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	view, err := h.Portal.Checkout().ConfirmPayment(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.SuccessMessage(w, view, "Payment confirmed. Thank you!")
}

// CheckoutReceipt renders the last placed order as a PDF.
func (h *Handler) CheckoutReceipt(w http.ResponseWriter, r *http.Request) {
	order, ok := h.Portal.Checkout().LastOrder()
	if !ok {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "No order has been placed yet")
		return
	}
	buf, err := receipt.Render(receipt.Data{
		MerchantName: h.Config.MerchantDisplayName,
		Order:        order,
		Menu:         h.Portal.Menu(),
	})
	if err != nil {
		h.Logger.Error("error rendering receipt", zap.Int64("orderId", order.ID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate receipt")
		return
	}
	response.File(w, "application/pdf", receipt.Filename(order.ID), buf.Bytes(), true)
}

func (h *Handler) checkoutStep(w http.ResponseWriter, step func() error) {
	if err := step(); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Portal.Checkout().View())
}

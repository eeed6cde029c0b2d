package handlers

import (
	"net/http"
	"strings"
	"time"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/api"
	"momo-storefront/internal/auth"
	"momo-storefront/internal/middleware"
	"momo-storefront/pkg/response"

	"go.uber.org/zap"
)

type adminLoginRequest struct {
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Admin     api.AdminUser `json:"admin"`
}

// AdminLogin checks the password against the backend and hands out a local session token.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var body adminLoginRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Password) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password is required")
		return
	}

	sessionID, err := auth.NewSessionID()
	if err != nil {
		h.Logger.Error("error creating session id", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session")
		return
	}
	// Registered before the backend login so the dashboard's first poll sees a live session.
	ttl := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	h.Sessions.Add(sessionID, time.Now().Add(ttl))

	user, err := h.Dashboard.Login(r.Context(), body.Password)
	if err != nil {
		h.Sessions.Revoke(sessionID)
		if api.StatusCode(err) == http.StatusUnauthorized {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
			return
		}
		h.writeError(w, err)
		return
	}

	token, expiresAt, err := auth.IssueAccessToken(h.Config.JWTSecret, user.ID, user.Username, sessionID, ttl)
	if err != nil {
		h.Sessions.Revoke(sessionID)
		h.Logger.Error("error issuing admin token", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session")
		return
	}
	h.Sessions.Add(sessionID, expiresAt)

	response.SuccessMessage(w, adminLoginResponse{Token: token, ExpiresAt: expiresAt, Admin: user}, "Login successful")
}

// AdminLogout ends the caller's session. The dashboard stops polling once no admin
// session is left.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.ParseBearerToken(r.Header.Get("Authorization"))
	if token != "" {
		if authCtx, err := middleware.Authenticate(token, h.Config.JWTSecret, h.Sessions); err == nil {
			h.Sessions.Revoke(authCtx.SessionID)
		}
	}
	if h.Sessions.Count() == 0 {
		h.Dashboard.Logout()
	}
	response.SuccessMessage(w, nil, "Logged out")
}

type dashboardResponse struct {
	admin.Snapshot
	ActiveMerchant *api.Merchant `json:"active_merchant,omitempty"`
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.Dashboard.Snapshot()
	out := dashboardResponse{Snapshot: snap}
	if m, ok := snap.ActiveMerchant(); ok {
		out.ActiveMerchant = &m
	}
	response.Success(w, out)
}

// logAdminAction records who changed what; the auth middleware puts the admin on the context.
func (h *Handler) logAdminAction(r *http.Request, action string, fields ...zap.Field) {
	if authCtx, ok := middleware.GetAuthContext(r.Context()); ok {
		fields = append(fields, zap.String("admin", authCtx.Username))
	}
	h.Logger.Info(action, fields...)
}

func (h *Handler) AdminReload(w http.ResponseWriter, r *http.Request) {
	if err := h.Dashboard.Reload(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Dashboard.Snapshot())
}

func (h *Handler) AdminOrderTogglePaid(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	if err := h.Dashboard.TogglePaid(r.Context(), orderID); err != nil {
		h.writeError(w, err)
		return
	}
	h.logAdminAction(r, "payment status toggled", zap.Int64("orderId", orderID))
	response.Success(w, h.Dashboard.Snapshot())
}

type orderStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

func (h *Handler) AdminOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	var body orderStatusRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	switch body.OrderStatus {
	case api.OrderStatusNew, api.OrderStatusPreparing, api.OrderStatusServed:
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "order_status must be new, preparing or served")
		return
	}
	if err := h.Dashboard.SetOrderStatus(r.Context(), orderID, body.OrderStatus); err != nil {
		h.writeError(w, err)
		return
	}
	h.logAdminAction(r, "order status updated", zap.Int64("orderId", orderID), zap.String("orderStatus", body.OrderStatus))
	response.Success(w, h.Dashboard.Snapshot())
}

// deliveredRequest accepts either the checkbox form (delivered) or an explicit count.
type deliveredRequest struct {
	Portion   string `json:"portion"`
	Delivered *bool  `json:"delivered"`
	Quantity  *int   `json:"quantity"`
}

func (h *Handler) AdminOrderLineDelivered(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	lineID, err := readPathInt64(r, "lineID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid line id")
		return
	}
	var body deliveredRequest
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	ctx := r.Context()
	switch {
	case body.Quantity != nil:
		err = h.Dashboard.SetDeliveredQuantity(ctx, orderID, lineID, body.Portion, *body.Quantity)
	case body.Delivered != nil:
		err = h.Dashboard.SetDelivered(ctx, orderID, lineID, body.Portion, *body.Delivered)
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "delivered or quantity is required")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Success(w, h.Dashboard.Snapshot())
}

// AdminStatusUpdate sets is_open and the pause message. An empty body toggles is_open.
func (h *Handler) AdminStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var body api.StatusUpdate
	if err := decodeBody(r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var (
		status api.Status
		err    error
	)
	if body.IsOpen == nil && body.PauseMessage == nil {
		status, err = h.Dashboard.ToggleOpen(r.Context())
	} else {
		status, err = h.Dashboard.UpdateStatus(r.Context(), body)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logAdminAction(r, "store status updated", zap.Bool("isOpen", status.IsOpen))
	response.Success(w, status)
}

func (h *Handler) AdminMerchantActivate(w http.ResponseWriter, r *http.Request) {
	merchantID, err := readPathInt64(r, "merchantID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid merchant id")
		return
	}
	if err := h.Dashboard.ActivateMerchant(r.Context(), merchantID); err != nil {
		h.writeError(w, err)
		return
	}
	h.logAdminAction(r, "merchant activated", zap.Int64("merchantId", merchantID))
	response.Success(w, h.Dashboard.Snapshot())
}

// AdminTelemetry reports request latency percentiles per route.
func (h *Handler) AdminTelemetry(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]any{
		"routes":             middleware.LatencySummary(),
		"active_sessions":    h.Sessions.Count(),
		"polling":            h.Dashboard.Polling(),
		"storefront_polling": h.Portal.PollingStatus(),
	})
}

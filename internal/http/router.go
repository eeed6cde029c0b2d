package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"momo-storefront/internal/config"
	"momo-storefront/internal/http/handlers"
	"momo-storefront/internal/middleware"
	"momo-storefront/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, wsServer *ws.Server, logger *zap.Logger, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Request-Id",
			},
			ExposedHeaders: []string{
				"Content-Disposition",
				"X-Archive-Url",
				"X-Request-Id",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))

		r.Get("/storefront", h.StorefrontGet)
		r.Post("/storefront/reload", h.StorefrontReload)

		r.Get("/cart", h.CartGet)
		r.Delete("/cart", h.CartClear)
		r.Post("/cart/items", h.CartAdd)
		r.Put("/cart/items/{itemID}/{portion}", h.CartSetQuantity)
		r.Delete("/cart/items/{itemID}/{portion}", h.CartRemove)

		r.Get("/checkout", h.CheckoutGet)
		r.Post("/checkout", h.CheckoutDetails)
		r.Post("/checkout/review", h.CheckoutReview)
		r.Post("/checkout/back", h.CheckoutBack)
		r.Post("/checkout/reset", h.CheckoutReset)
		r.Post("/checkout/pay/cash", h.CheckoutPayCash)
		r.Post("/checkout/pay/upi", h.CheckoutPayUPI)
		r.Post("/checkout/confirm", h.CheckoutConfirm)
		r.Get("/checkout/receipt", h.CheckoutReceipt)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)
			r.Post("/logout", h.AdminLogout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminAuth(cfg.JWTSecret, h.Sessions))

				r.Get("/dashboard", h.AdminDashboard)
				r.Post("/reload", h.AdminReload)
				r.Post("/orders/{orderID}/paid", h.AdminOrderTogglePaid)
				r.Patch("/orders/{orderID}/status", h.AdminOrderStatus)
				r.Patch("/orders/{orderID}/items/{lineID}/delivered", h.AdminOrderLineDelivered)
				r.Patch("/status", h.AdminStatusUpdate)
				r.Post("/merchants/{merchantID}/activate", h.AdminMerchantActivate)
				r.Get("/menu", h.AdminMenuGet)
				r.Post("/menu", h.AdminMenuAdd)
				r.Post("/menu/{itemID}/availability", h.AdminMenuToggleAvailability)
				r.Get("/export", h.AdminExport)
				r.Get("/exports", h.AdminExportArchives)
				r.Get("/telemetry", h.AdminTelemetry)
			})
		})
	})

	if wsServer != nil {
		r.Get("/ws/storefront", wsServer.StorefrontWS)
		r.Get("/ws/admin", wsServer.AdminWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("requestId", w.Header().Get("X-Request-Id")),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}

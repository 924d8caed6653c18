package server

import (
	"net/http"
	"time"

	couponctrl "storefront/internal/coupon/controller"
	deliveryctrl "storefront/internal/delivery/controller"
	orderctrl "storefront/internal/order/controller"
	reportctrl "storefront/internal/report/controller"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Controllers struct {
	Orders   *orderctrl.OrderController
	Coupons  *couponctrl.CouponController
	Delivery *deliveryctrl.DeliveryController
	Reports  *reportctrl.ReportController
}

// NewRouter mounts the API. Caller identity arrives in the X-User-ID header
// from the upstream auth proxy, which also guards /api/admin.
func NewRouter(c Controllers, gatherer prometheus.Gatherer, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", c.Orders.Checkout)
			r.Get("/", c.Orders.ListMine)
			r.Post("/quote", c.Orders.Quote)
			r.Get("/number/{orderNumber}", c.Orders.GetByNumber)
			r.Get("/{orderId}", c.Orders.Get)
			r.Post("/{orderId}/cancel", c.Orders.Cancel)
		})

		r.Post("/coupons/apply", c.Coupons.Apply)
		r.Post("/delivery/quote", c.Delivery.Quote)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/orders", c.Orders.AdminList)
			r.Get("/orders/{orderId}", c.Orders.AdminGet)
			r.Patch("/orders/{orderId}/status", c.Orders.UpdateStatus)
			r.Get("/orders/{orderId}/transitions", c.Orders.AllowedTransitions)

			r.Get("/coupons", c.Coupons.List)
			r.Post("/coupons", c.Coupons.Create)
			r.Put("/coupons/{couponId}", c.Coupons.Update)
			r.Delete("/coupons/{couponId}", c.Coupons.Delete)

			r.Get("/delivery/settings", c.Delivery.GetSettings)
			r.Put("/delivery/settings", c.Delivery.UpdateSettings)
			r.Put("/delivery/pincodes", c.Delivery.ImportPincodes)

			r.Post("/reports", c.Reports.Generate)
			r.Get("/reports/{reportId}", c.Reports.GetJob)
		})
	})

	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

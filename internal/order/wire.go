package order

import (
	"database/sql"

	"storefront/internal/config"
	couponservice "storefront/internal/coupon/service"
	deliveryservice "storefront/internal/delivery/service"
	"storefront/internal/infrastructure/metrics"
	"storefront/internal/order/controller"
	"storefront/internal/order/repository"
	"storefront/internal/order/service"
	"storefront/internal/order/usecase"
	"storefront/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Module struct {
	Service    *service.OrderService
	Checkout   *usecase.CheckoutUseCase
	Controller *controller.OrderController
}

// NewModule wires the order lifecycle. Without a webhook secret, checkouts
// that carry a gateway payment id are rejected.
func NewModule(
	db *sql.DB,
	cfg *config.Config,
	coupons *couponservice.CouponService,
	delivery *deliveryservice.DeliveryService,
	notifier service.Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Module {
	svc := service.NewOrderService(
		repository.NewMySQLOrderRepository(db),
		repository.NewMySQLOrderItemRepository(db),
		coupons,
		notifier,
		m,
		logger,
	)

	var verifier usecase.PaymentVerifier
	if cfg.Payment.WebhookSecret != "" {
		verifier = payment.NewSignatureVerifier(cfg.Payment.WebhookSecret)
	}

	checkout := usecase.NewCheckoutUseCase(
		svc,
		coupons,
		delivery,
		verifier,
		logger,
		decimal.NewFromFloat(cfg.Order.TaxRate),
		cfg.Order.MaxRetryAttempts,
		cfg.Order.TxTimeout,
	)

	return &Module{
		Service:    svc,
		Checkout:   checkout,
		Controller: controller.NewOrderController(checkout, svc, logger),
	}
}

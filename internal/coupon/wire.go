package coupon

import (
	"database/sql"

	"storefront/internal/coupon/controller"
	"storefront/internal/coupon/repository"
	"storefront/internal/coupon/service"
	"storefront/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

type Module struct {
	Service    *service.CouponService
	Controller *controller.CouponController
}

func NewModule(db *sql.DB, m *metrics.Metrics, logger *zap.Logger) *Module {
	repo := repository.NewMySQLCouponRepository(db)
	svc := service.NewCouponService(repo, m, logger)
	return &Module{
		Service:    svc,
		Controller: controller.NewCouponController(svc, logger),
	}
}

package report

import (
	"database/sql"

	"storefront/internal/config"
	"storefront/internal/infrastructure/metrics"
	orderrepo "storefront/internal/order/repository"
	"storefront/internal/report/controller"
	"storefront/internal/report/repository"
	"storefront/internal/report/service"

	"go.uber.org/zap"
)

type Module struct {
	Service    *service.ReportService
	Controller *controller.ReportController
}

func NewModule(db *sql.DB, cfg *config.Config, notifier service.Notifier, m *metrics.Metrics, logger *zap.Logger) *Module {
	svc := service.NewReportService(
		orderrepo.NewMySQLOrderRepository(db),
		repository.NewMySQLReportJobRepository(db),
		notifier,
		service.Options{
			AsyncThreshold: cfg.Report.AsyncThreshold,
			PageSize:       cfg.Report.PageSize,
			Parallelism:    cfg.Report.Parallelism,
		},
		m,
		logger,
	)
	return &Module{
		Service:    svc,
		Controller: controller.NewReportController(svc, logger),
	}
}

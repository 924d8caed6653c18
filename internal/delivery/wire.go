package delivery

import (
	"database/sql"

	"storefront/internal/config"
	"storefront/internal/delivery/controller"
	"storefront/internal/delivery/repository"
	"storefront/internal/delivery/service"
	"storefront/internal/infrastructure/cache"
	"storefront/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

type Module struct {
	Service    *service.DeliveryService
	Controller *controller.DeliveryController
}

// NewModule wires the delivery pricing engine. locationCache may be nil, in
// which case pincode lookups go straight to MySQL. Imported pincodes are
// evicted from the cache as they are written.
func NewModule(db *sql.DB, cfg *config.Config, locationCache cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Module {
	pincodes := repository.NewMySQLPincodeRepository(db)

	var locator service.Locator = pincodes
	if locationCache != nil {
		locator = service.NewCachedLocator(locator, locationCache, cfg.Redis.LocationTTL, logger)
	}

	svc := service.NewDeliveryService(
		repository.NewMySQLSettingsRepository(db),
		locator,
		pincodes,
		m,
		logger,
		cfg.Delivery.SettingsCacheTTL,
	)
	return &Module{
		Service:    svc,
		Controller: controller.NewDeliveryController(svc, logger),
	}
}

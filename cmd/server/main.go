package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/commons"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/delivery"
	"storefront/internal/infrastructure/cache"
	"storefront/internal/infrastructure/logger"
	"storefront/internal/infrastructure/metrics"
	"storefront/internal/infrastructure/mysql"
	"storefront/internal/notification"
	"storefront/internal/order"
	"storefront/internal/report"
	"storefront/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := commons.LoadConfig("internal/config/config.yaml")
	if err != nil {
		log.Printf("config file unavailable, using environment: %v", err)
		if cfg, err = config.Load(); err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}

	zapLogger, err := logger.New(cfg.Log.Level, "storefront")
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mysql.Migrate(migrateCtx, db); err != nil {
		zapLogger.Fatal("migrating schema", zap.Error(err))
	}
	cancelMigrate()
	zapLogger.Info("database connected")

	var locationCache cache.Cache
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, "storefront")
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			zapLogger.Warn("redis unavailable, pincode lookups uncached", zap.Error(err))
			rc.Close()
		} else {
			locationCache = rc
			defer rc.Close()
		}
		cancelPing()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	notifications := notification.NewModule(db, cfg, m, zapLogger)
	coupons := coupon.NewModule(db, m, zapLogger)
	deliveries := delivery.NewModule(db, cfg, locationCache, m, zapLogger)
	orders := order.NewModule(db, cfg, coupons.Service, deliveries.Service, notifications.Dispatcher, m, zapLogger)
	reports := report.NewModule(db, cfg, notifications.Dispatcher, m, zapLogger)

	router := server.NewRouter(server.Controllers{
		Orders:   orders.Controller,
		Coupons:  coupons.Controller,
		Delivery: deliveries.Controller,
		Reports:  reports.Controller,
	}, registry, zapLogger)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	// Report jobs may still emit ReportReady, so they stop before the dispatcher.
	if err := reports.Service.Close(ctx); err != nil {
		zapLogger.Error("report jobs did not finish", zap.Error(err))
	}
	if err := notifications.Close(ctx); err != nil {
		zapLogger.Error("notification flush failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}

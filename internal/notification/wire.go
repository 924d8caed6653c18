package notification

import (
	"context"
	"database/sql"
	"io"

	"storefront/internal/config"
	"storefront/internal/infrastructure/mailer"
	"storefront/internal/infrastructure/metrics"
	"storefront/internal/notification/repository"
	"storefront/internal/notification/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Module struct {
	Dispatcher *service.Dispatcher
	sender     service.Sender
}

// NewModule wires the notification dispatcher. Mail is published to Kafka
// when brokers are configured and written to the log otherwise.
func NewModule(db *sql.DB, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Module {
	var sender service.Sender
	if len(cfg.Kafka.Brokers) > 0 {
		sender = mailer.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.MailTopic, cfg.Notification.FromAddress)
		logger.Info("mail transport: kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.MailTopic))
	} else {
		sender = mailer.NewLogSender(logger)
		logger.Info("mail transport: log")
	}

	opts := service.Options{
		AdminEmail:         cfg.Notification.AdminEmail,
		MaxAttempts:        cfg.Notification.MaxAttempts,
		BackoffBase:        cfg.Notification.BackoffBase,
		BatchWindow:        cfg.Notification.BatchWindow,
		PriorityOrderTotal: decimal.NewFromFloat(cfg.Notification.PriorityOrderTotal),
	}

	return &Module{
		Dispatcher: service.NewDispatcher(
			sender,
			repository.NewMySQLLogRepository(db),
			repository.NewMySQLProfileRepository(db),
			opts,
			m,
			logger,
		),
		sender: sender,
	}
}

// Close drains the dispatcher and then releases the mail transport.
func (m *Module) Close(ctx context.Context) error {
	if err := m.Dispatcher.Close(ctx); err != nil {
		return err
	}
	if c, ok := m.sender.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

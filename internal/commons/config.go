package commons

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"storefront/internal/config"
)

func LoadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills the knobs a YAML file may leave out.
func applyDefaults(cfg *config.Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Redis.LocationTTL == 0 {
		cfg.Redis.LocationTTL = 24 * time.Hour
	}
	if cfg.Kafka.MailTopic == "" {
		cfg.Kafka.MailTopic = "storefront.mail"
	}
	if cfg.Order.MaxRetryAttempts == 0 {
		cfg.Order.MaxRetryAttempts = 3
	}
	if cfg.Order.TxTimeout == 0 {
		cfg.Order.TxTimeout = 5 * time.Second
	}
	if cfg.Delivery.SettingsCacheTTL == 0 {
		cfg.Delivery.SettingsCacheTTL = 5 * time.Minute
	}
	if cfg.Notification.MaxAttempts == 0 {
		cfg.Notification.MaxAttempts = 3
	}
	if cfg.Notification.BackoffBase == 0 {
		cfg.Notification.BackoffBase = time.Second
	}
	if cfg.Notification.BatchWindow == 0 {
		cfg.Notification.BatchWindow = 60 * time.Second
	}
	if cfg.Report.AsyncThreshold == 0 {
		cfg.Report.AsyncThreshold = 1000
	}
	if cfg.Report.PageSize == 0 {
		cfg.Report.PageSize = 100
	}
	if cfg.Report.Parallelism == 0 {
		cfg.Report.Parallelism = 4
	}
}

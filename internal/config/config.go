package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Log          LogConfig          `yaml:"log"`
	Order        OrderConfig        `yaml:"order"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Notification NotificationConfig `yaml:"notification"`
	Report       ReportConfig       `yaml:"report"`
	Payment      PaymentConfig      `yaml:"payment"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	LocationTTL time.Duration `yaml:"locationTtl"`
}

type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	MailTopic string   `yaml:"mailTopic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OrderConfig struct {
	TaxRate          float64       `yaml:"taxRate"`
	MaxRetryAttempts int           `yaml:"maxRetryAttempts"`
	TxTimeout        time.Duration `yaml:"txTimeout"`
}

type DeliveryConfig struct {
	SettingsCacheTTL time.Duration `yaml:"settingsCacheTtl"`
}

type NotificationConfig struct {
	AdminEmail  string        `yaml:"adminEmail"`
	FromAddress string        `yaml:"fromAddress"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BackoffBase time.Duration `yaml:"backoffBase"`
	BatchWindow time.Duration `yaml:"batchWindow"`

	// PriorityOrderTotal is the order total at or above which admins get an
	// immediate priority alert instead of a batched one. Zero disables it.
	PriorityOrderTotal float64 `yaml:"priorityOrderTotal"`
}

type ReportConfig struct {
	AsyncThreshold int `yaml:"asyncThreshold"`
	PageSize       int `yaml:"pageSize"`
	Parallelism    int `yaml:"parallelism"`
}

type PaymentConfig struct {
	WebhookSecret string `yaml:"webhookSecret"`
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 3306)
	viper.SetDefault("DB_USER", "storefront")
	viper.SetDefault("DB_PASSWORD", "secret")
	viper.SetDefault("DB_NAME", "storefront")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_LOCATION_TTL", "24h")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_MAIL_TOPIC", "storefront.mail")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ORDER_TAX_RATE", 0.0)
	viper.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("ORDER_TX_TIMEOUT", "5s")
	viper.SetDefault("DELIVERY_SETTINGS_CACHE_TTL", "5m")
	viper.SetDefault("NOTIFICATION_ADMIN_EMAIL", "")
	viper.SetDefault("NOTIFICATION_FROM_ADDRESS", "orders@storefront.local")
	viper.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 3)
	viper.SetDefault("NOTIFICATION_BACKOFF_BASE", "1s")
	viper.SetDefault("NOTIFICATION_BATCH_WINDOW", "60s")
	viper.SetDefault("NOTIFICATION_PRIORITY_ORDER_TOTAL", 10000.0)
	viper.SetDefault("REPORT_ASYNC_THRESHOLD", 1000)
	viper.SetDefault("REPORT_PAGE_SIZE", 100)
	viper.SetDefault("REPORT_PARALLELISM", 4)
	viper.SetDefault("PAYMENT_WEBHOOK_SECRET", "")

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"DB_CONN_MAX_LIFETIME", "REDIS_LOCATION_TTL", "ORDER_TX_TIMEOUT",
		"DELIVERY_SETTINGS_CACHE_TTL", "NOTIFICATION_BACKOFF_BASE", "NOTIFICATION_BATCH_WINDOW",
	} {
		d, err := time.ParseDuration(viper.GetString(key))
		if err != nil {
			return nil, err
		}
		durations[key] = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
		},
		Redis: RedisConfig{
			Addr:        viper.GetString("REDIS_ADDR"),
			LocationTTL: durations["REDIS_LOCATION_TTL"],
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(viper.GetString("KAFKA_BROKERS")),
			MailTopic: viper.GetString("KAFKA_MAIL_TOPIC"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Order: OrderConfig{
			TaxRate:          viper.GetFloat64("ORDER_TAX_RATE"),
			MaxRetryAttempts: viper.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
			TxTimeout:        durations["ORDER_TX_TIMEOUT"],
		},
		Delivery: DeliveryConfig{
			SettingsCacheTTL: durations["DELIVERY_SETTINGS_CACHE_TTL"],
		},
		Notification: NotificationConfig{
			AdminEmail:         viper.GetString("NOTIFICATION_ADMIN_EMAIL"),
			FromAddress:        viper.GetString("NOTIFICATION_FROM_ADDRESS"),
			MaxAttempts:        viper.GetInt("NOTIFICATION_MAX_ATTEMPTS"),
			BackoffBase:        durations["NOTIFICATION_BACKOFF_BASE"],
			BatchWindow:        durations["NOTIFICATION_BATCH_WINDOW"],
			PriorityOrderTotal: viper.GetFloat64("NOTIFICATION_PRIORITY_ORDER_TOTAL"),
		},
		Report: ReportConfig{
			AsyncThreshold: viper.GetInt("REPORT_ASYNC_THRESHOLD"),
			PageSize:       viper.GetInt("REPORT_PAGE_SIZE"),
			Parallelism:    viper.GetInt("REPORT_PARALLELISM"),
		},
		Payment: PaymentConfig{
			WebhookSecret: viper.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  validate:"required"`
	Redis   RedisConfig   `mapstructure:"redis"   validate:"required"`
	Broker  BrokerConfig  `mapstructure:"broker"  validate:"required"`
	Crawler CrawlerConfig `mapstructure:"crawler" validate:"required"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
}

// ServerConfig configures the HTTP submission surface.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RedisConfig configures the shared Redis instance backing both the status
// store and the broker queues.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// BrokerConfig names the two logical queues and bounds worker parallelism.
type BrokerConfig struct {
	TaskQueue   string `mapstructure:"task_queue"   validate:"required"`
	ResultQueue string `mapstructure:"result_queue" validate:"required"`
	Concurrency int    `mapstructure:"concurrency"  validate:"gt=0"`
}

// CrawlerConfig tunes the extraction engine.
type CrawlerConfig struct {
	DefaultRegion string `mapstructure:"default_region" validate:"required,len=2"`
	PageSize      int    `mapstructure:"page_size" validate:"gte=0"`
	MaxPages      int    `mapstructure:"max_pages" validate:"gte=0"`
}

// AlertsConfig configures the outbound notification channels. All fields are
// optional; unconfigured channels drop alerts with a warning.
type AlertsConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
	MonitoringURL    string `mapstructure:"monitoring_url" validate:"omitempty,url"`
}

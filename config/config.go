package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Fab      FabConfig      `yaml:"fab"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password" env:"FAB_DB_PASSWORD"`
	DBName         string `yaml:"name"`
	SSLMode        string `yaml:"ssl_mode"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	OrderStatusTopicName  string `yaml:"order_status_topic_name"`
	EmailTopicName        string `yaml:"email_topic_name"`
	NotifierConsumerGroup string `yaml:"notifier_consumer_group"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WhatsAppConfig struct {
	Enabled            bool   `yaml:"enabled" env:"FAB_WHATSAPP_ENABLED"`
	BaseURL            string `yaml:"base_url"`
	PhoneNumberID      string `yaml:"phone_number_id"`
	AccessToken        string `yaml:"access_token" env:"FAB_WHATSAPP_TOKEN"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	LanguageCode       string `yaml:"language_code"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type FabConfig struct {
	HTTPAddr         string `yaml:"http_addr"`
	NotifierHTTPAddr string `yaml:"notifier_http_addr"`
	LogLevel         string `yaml:"log_level" env:"LOG_LEVEL"`

	// "sync" | "kafka"
	NotificationMode string `yaml:"notification_mode" env:"FAB_NOTIFICATION_MODE"`

	BarcodePrefix          string `yaml:"barcode_prefix"`
	BarcodeCacheTTLSeconds int    `yaml:"barcode_cache_ttl_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	// Секреты можно не класть в файл: env перекрывает yaml.
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	return &config, nil
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DBName, sslMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) KafkaBrokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

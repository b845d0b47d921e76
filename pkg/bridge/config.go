package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the MQTT broker settings of the host bridge.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// CartID names this cart in the topic tree.
	CartID string
	// PublishInterval is the longest gap between telemetry messages when
	// nothing changes.
	PublishInterval time.Duration
}

// LoadConfig loads configuration from environment variables and an
// optional .env file.
func LoadConfig() (*Config, error) {
	// .env file is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", "err", err)
	}

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("bridge configuration: %w", err)
	}
	return cfg, nil
}

func loadConfig() *Config {
	cartID := getEnvString("LINECART_CART_ID", "cart1")
	return &Config{
		BrokerURL:       getEnvString("LINECART_MQTT_BROKER_URL", "tcp://localhost:1883"),
		ClientID:        getEnvString("LINECART_MQTT_CLIENT_ID", "linecart-"+cartID),
		Username:        getEnvString("LINECART_MQTT_USERNAME", ""),
		Password:        getEnvString("LINECART_MQTT_PASSWORD", ""),
		QoS:             byte(getEnvInt("LINECART_MQTT_QOS", 0)),
		KeepAlive:       time.Duration(getEnvInt("LINECART_MQTT_KEEP_ALIVE", 30)) * time.Second,
		ConnectTimeout:  time.Duration(getEnvInt("LINECART_MQTT_CONNECT_TIMEOUT", 10)) * time.Second,
		CartID:          cartID,
		PublishInterval: time.Duration(getEnvInt("LINECART_MQTT_PUBLISH_INTERVAL_MS", 1000)) * time.Millisecond,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.BrokerURL == "" {
		return fmt.Errorf("LINECART_MQTT_BROKER_URL is required")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("LINECART_MQTT_CLIENT_ID is required")
	}
	if cfg.CartID == "" {
		return fmt.Errorf("LINECART_CART_ID is required")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("LINECART_MQTT_QOS must be 0, 1, or 2")
	}
	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("LINECART_MQTT_CONNECT_TIMEOUT must be greater than 0")
	}
	if cfg.PublishInterval <= 0 {
		return fmt.Errorf("LINECART_MQTT_PUBLISH_INTERVAL_MS must be greater than 0")
	}
	return nil
}

// getEnvString gets environment variable as string with default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

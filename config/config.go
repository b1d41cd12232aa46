package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for both the monitor daemon and the alert service.
type Config struct {
	// Monitor daemon
	MonitorPort    string
	APIBaseURL     string
	WSBaseURL      string
	DetectBaseURL  string
	RequestTimeout time.Duration
	DetectTimeout  time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration

	// Alert service
	AlertAPIPort string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RabbitMQ fan-out (optional; empty URL disables publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPRouting  string

	// Logging
	LogLevel string
}

// Load loads configuration from the environment, with a best-effort .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		MonitorPort:    getEnv("MONITOR_PORT", "8090"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		WSBaseURL:      getEnv("WS_BASE_URL", "ws://localhost:8000"),
		DetectBaseURL:  getEnv("DETECT_BASE_URL", getEnv("API_BASE_URL", "http://localhost:8000")),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		DetectTimeout:  getDurationEnv("DETECT_TIMEOUT", 120*time.Second),
		ReconnectMin:   getDurationEnv("RECONNECT_MIN", time.Second),
		ReconnectMax:   getDurationEnv("RECONNECT_MAX", time.Minute),

		AlertAPIPort: getEnv("ALERT_API_PORT", "8000"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "incidents"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "alerts"),
		AMQPRouting:  getEnv("AMQP_ROUTING_KEY", "alerts.created"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Delay bounds for the inter-message pause, in seconds.
const (
	MinDelaySeconds = 1
	MaxDelaySeconds = 300
)

type Config struct {
	Port     string
	LogLevel string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	AMQPURL string

	// Transport selects the outbound transport: "mock" wires the
	// in-memory transport with MockChannels channels for local runs.
	Transport    string
	MockChannels int

	DefaultDelaySeconds int
	SettleDelay         time.Duration
	StuckWindow         time.Duration
}

// Load reads configuration from the environment. Call godotenv.Load
// first in main if a .env file should be honored.
func Load() Config {
	return Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBName:     os.Getenv("DB_NAME"),

		AMQPURL: os.Getenv("AMQP_URL"),

		Transport:    getenv("TRANSPORT", "mock"),
		MockChannels: getint("MOCK_CHANNELS", 3),

		DefaultDelaySeconds: ClampDelay(getint("DEFAULT_DELAY_SECONDS", 15)),
		SettleDelay:         getduration("SETTLE_DELAY", 2*time.Second),
		StuckWindow:         getduration("STUCK_WINDOW", 10*time.Minute),
	}
}

// ClampDelay forces an inter-message delay into the allowed 1..300s
// range; zero or negative falls back to the minimum.
func ClampDelay(seconds int) int {
	if seconds < MinDelaySeconds {
		return MinDelaySeconds
	}
	if seconds > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return seconds
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

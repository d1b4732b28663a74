package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds runtime settings read from the environment (and .env when present).
type Config struct {
	HTTPAddr string
	GinMode  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimezone string

	JWTSecret string
	TokenTTL  time.Duration

	LogFile  string
	LogLevel string

	// Buses silent for longer than BusSilenceWindow are flipped inactive every ReaperInterval.
	ReaperInterval   time.Duration
	BusSilenceWindow time.Duration

	// ArrivalRadiusMeters is how close a bus must get to its next stop for the stop to count as reached.
	ArrivalRadiusMeters float64
}

// Load reads configuration, falling back to development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on env vars")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "qr_transit"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBTimezone: getEnv("DB_TIMEZONE", "UTC"),

		JWTSecret: getEnv("JWT_SECRET", "supersecret"),
		TokenTTL:  getDurationEnv("TOKEN_TTL", 72*time.Hour),

		LogFile:  getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		ReaperInterval:   getDurationEnv("REAPER_INTERVAL", 30*time.Second),
		BusSilenceWindow: getDurationEnv("BUS_SILENCE_WINDOW", 2*time.Minute),

		ArrivalRadiusMeters: getFloatEnv("ARRIVAL_RADIUS_M", 50),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logrus.WithField("key", key).Warnf("invalid or non-positive duration %q, using default %s", v, defaultValue)
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if v, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logrus.WithField("key", key).Warnf("invalid number %q, using default %v", v, defaultValue)
	}
	return defaultValue
}

// Package config loads collector settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/locplace/fingerprint/internal/logstore"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// ErrMissingAdminPassword is returned when ADMIN_PASSWORD is not set.
var ErrMissingAdminPassword = errors.New("ADMIN_PASSWORD environment variable is required")

// Config lists the tunable parameters for the collector.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	StoreDriver string
	LogFile     string
	DatabaseURL string

	AdminPassword  string
	AdminAPIKey    string
	SessionTTL     time.Duration
	ReaperInterval time.Duration
	// CookieSecure marks the admin session cookie Secure. Enable behind TLS.
	CookieSecure bool

	MetricsInterval time.Duration

	GeoIPTimeout        time.Duration
	IPGeolocationAPIKey string

	KafkaBrokers []string
	KafkaTopic   string

	// MaxConnections caps concurrent connections on the main listener.
	// Zero means unlimited.
	MaxConnections int
}

const (
	defaultListenAddr      = ":8080"
	defaultMetricsAddr     = ":9090"
	defaultSessionTTL      = 12 * time.Hour
	defaultReaperInterval  = 5 * time.Minute
	defaultMetricsInterval = 15 * time.Second
	defaultGeoIPTimeout    = 5 * time.Second
	defaultKafkaTopic      = "fingerprint-records"
)

// LoadDotEnv reads variables from the given files (".env" when none are
// given) into the environment. Variables already set are left alone.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("No .env file loaded (%v), using environment variables", err)
	}
}

// Load derives configuration values from environment variables, falling back to defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:          getEnv("LISTEN_ADDR", defaultListenAddr),
		MetricsAddr:         getEnv("METRICS_ADDR", defaultMetricsAddr),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", DriverFile)),
		LogFile:             LogFile(),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		AdminAPIKey:         os.Getenv("ADMIN_API_KEY"),
		SessionTTL:          parseDuration("SESSION_TTL", defaultSessionTTL),
		ReaperInterval:      parseDuration("REAPER_INTERVAL", defaultReaperInterval),
		MetricsInterval:     parseDuration("METRICS_INTERVAL", defaultMetricsInterval),
		GeoIPTimeout:        parseDuration("GEOIP_TIMEOUT", defaultGeoIPTimeout),
		IPGeolocationAPIKey: os.Getenv("IPGEOLOCATION_API_KEY"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", defaultKafkaTopic),
	}

	if cfg.AdminPassword == "" {
		return Config{}, ErrMissingAdminPassword
	}

	switch cfg.StoreDriver {
	case DriverFile:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, DriverFile, DriverPostgres)
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"SESSION_TTL", cfg.SessionTTL},
		{"REAPER_INTERVAL", cfg.ReaperInterval},
		{"METRICS_INTERVAL", cfg.MetricsInterval},
		{"GEOIP_TIMEOUT", cfg.GeoIPTimeout},
	} {
		if d.val <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", d.key, d.val)
		}
	}

	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid COOKIE_SECURE %q", v)
		}
		cfg.CookieSecure = b
	}

	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid MAX_CONNECTIONS %q", v)
		}
		cfg.MaxConnections = n
	}

	return cfg, nil
}

// LogFile returns the JSON log path from LOG_FILE, or the default file name.
func LogFile() string {
	return getEnv("LOG_FILE", logstore.DefaultPath)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration for %s: %v, using default", key, err)
		return defaultVal
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

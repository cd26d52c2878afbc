package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	LogLevel      string
	Environment   string
	Timezone      string

	PollInterval      time.Duration
	QuietHoursEnabled bool
	QuietHoursStart   int // First quiet hour
	QuietHoursEnd     int // First active hour
	QuietHoursBackoff time.Duration

	SensorDriver    string // mcp3008, fake or random
	SPIPort         string // Empty selects the first SPI port
	SensorTimeout   time.Duration
	DispatchTimeout time.Duration

	ClassifierURL     string
	ClassifierTimeout time.Duration

	RedisAddr     string // Empty uses the in-process guard
	RedisPassword string
	RedisDB       int

	MQTTBroker      string // Empty disables telemetry
	MQTTClientID    string
	MQTTTopicPrefix string

	CronSpecTelemetry string
	HTTPAddress       string // Empty disables the status server
	HTTPAllowOrigins  []string
}

// Location resolves Timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ValidateForServe checks the settings only the long running bot needs.
func (c *AppConfig) ValidateForServe() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is not set"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if c.ClassifierURL == "" {
		errs = append(errs, errors.New("CLASSIFIER_URL is not set"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables and .env file (if present).
// Only parse errors are reported here; required settings are checked per command.
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Environment:       strings.ToLower(getEnv("ENVIRONMENT", "development")),
		Timezone:          getEnv("TIMEZONE", "Asia/Tokyo"),
		SensorDriver:      strings.ToLower(getEnv("SENSOR_DRIVER", "mcp3008")),
		SPIPort:           os.Getenv("SPI_PORT"),
		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "watering-bot"),
		MQTTTopicPrefix:   getEnv("MQTT_TOPIC_PREFIX", "watering"),
		CronSpecTelemetry: getEnv("CRON_SPEC_TELEMETRY", "*/15 * * * *"), // Every 15 minutes
		HTTPAddress:       os.Getenv("HTTP_ADDRESS"),
		HTTPAllowOrigins:  splitList(os.Getenv("HTTP_ALLOW_ORIGINS")),
	}

	var errs []error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"POLL_INTERVAL", 60 * time.Second, &cfg.PollInterval},
		{"QUIET_HOURS_BACKOFF", 10 * time.Minute, &cfg.QuietHoursBackoff},
		{"SENSOR_TIMEOUT", time.Second, &cfg.SensorTimeout},
		{"DISPATCH_TIMEOUT", 10 * time.Second, &cfg.DispatchTimeout},
		{"CLASSIFIER_TIMEOUT", 30 * time.Second, &cfg.ClassifierTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		errs = append(errs, err)
		*d.dest = v
	}

	ints := []struct {
		key      string
		def      int
		min, max int
		dest     *int
	}{
		{"QUIET_HOURS_START", 22, 0, 23, &cfg.QuietHoursStart},
		{"QUIET_HOURS_END", 8, 0, 23, &cfg.QuietHoursEnd},
		{"REDIS_DB", 0, 0, 15, &cfg.RedisDB},
	}
	for _, i := range ints {
		v, err := getInt(i.key, i.def, i.min, i.max)
		errs = append(errs, err)
		*i.dest = v
	}

	var err error
	cfg.QuietHoursEnabled, err = getBool("QUIET_HOURS_ENABLED", false)
	errs = append(errs, err)

	switch cfg.SensorDriver {
	case "mcp3008", "fake", "random":
	default:
		errs = append(errs, fmt.Errorf("invalid SENSOR_DRIVER %q (expected mcp3008, fake or random)", cfg.SensorDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getInt(key string, def, lo, hi int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < lo || n > hi {
		return def, fmt.Errorf("invalid %s: %d not in %d-%d", key, n, lo, hi)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
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

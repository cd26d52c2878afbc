package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/infra/config"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger: JSON in production and staging, text otherwise.
func Init(cfg *config.AppConfig) {
	InitWithOutput(cfg, os.Stdout)
}

func InitWithOutput(cfg *config.AppConfig, out io.Writer) {
	Log.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch strings.ToLower(cfg.Environment) {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.Debugf("Logger initialized (level=%s, environment=%s)", Log.GetLevel(), cfg.Environment)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

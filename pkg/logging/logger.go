// Package logging configures logrus the way the service binaries use
// it: JSON lines, level taken from LOG_LEVEL, and a service name
// stamped on every entry.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentzentro/platform/pkg/config"
)

// Logger and Fields alias their logrus counterparts so call sites do
// not need a second import.
type (
	Logger = *logrus.Logger
	Fields = logrus.Fields
)

// serviceHook stamps a service field on every entry.
type serviceHook struct {
	service string
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}

// NewLogger returns a JSON logger at the configured level.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService tags all entries with the given service name.
func NewLoggerWithService(serviceName string) *logrus.Logger {
	logger := NewLogger()
	logger.AddHook(&serviceHook{service: serviceName})
	return logger
}

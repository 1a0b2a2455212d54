package utils

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const isoTimestamp = "2006-01-02T15:04:05Z07:00"

// init initializes the global logger configuration when the package is imported.
func init() {
	//set log formatter to JSON with ISO 8601 timestamps
	log.SetFormatter(&log.JSONFormatter{
		TimestampFormat: isoTimestamp,
	})

	// Output to stdout
	log.SetOutput(os.Stdout)

	// Set default log level
	log.SetLevel(log.InfoLevel)
}

// ConfigureLogger applies the configured level and format ("json" or "text").
// An unknown level leaves the current level in place and is reported.
func ConfigureLogger(level, format string) {
	switch strings.ToLower(format) {
	case "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: isoTimestamp,
		})
	default:
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: isoTimestamp,
		})
	}

	if level == "" {
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		Warn("logger: unknown log level, keeping current", map[string]any{"level": level})
		return
	}
	log.SetLevel(lvl)
}

// Debug logs a message at debug level with optional fields
func Debug(message string, fields map[string]any) {
	log.WithFields(fields).Debug(message)
}

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) {
	log.WithFields(fields).Info(message)
}

// Warn logs a message at warning level with optional fields
func Warn(message string, fields map[string]any) {
	log.WithFields(fields).Warn(message)
}

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) {
	log.WithFields(fields).Error(message)
}

// Fatal logs a message at fatal level and exits the application
func Fatal(message string, fields map[string]any) {
	log.WithFields(fields).Fatal(message)
}

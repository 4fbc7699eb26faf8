// Package observability provides logging and metrics plumbing shared across
// the matchmaking and match-session services.
package observability

import (
	"log"
)

// Config is the configuration for observability
type Config struct {
	Metrics MetricsConfig
	Logging LoggingConfig
}

// MetricsConfig is the configuration for metrics
type MetricsConfig struct {
	Enabled   bool
	Endpoint  string
	Namespace string
}

// LoggingConfig is the configuration for logging
type LoggingConfig struct {
	Level  string
	Format string
}

// Logger is the logger interface
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})
	WithPrefix(prefix string) Logger
}

// simpleLogger is a basic implementation of the Logger interface
type simpleLogger struct {
	name string
}

// DefaultLogger is the default logger for the application
var DefaultLogger Logger = NewLogger("default")

// NewLogger creates a new logger with the given name
func NewLogger(name string) Logger {
	return &simpleLogger{name: name}
}

// Debug logs a debug message
func (l *simpleLogger) Debug(msg string, fields map[string]interface{}) {
	log.Printf("[DEBUG] %s: %s %v", l.name, msg, fields)
}

// Info logs an info message
func (l *simpleLogger) Info(msg string, fields map[string]interface{}) {
	log.Printf("[INFO] %s: %s %v", l.name, msg, fields)
}

// Warn logs a warning message
func (l *simpleLogger) Warn(msg string, fields map[string]interface{}) {
	log.Printf("[WARN] %s: %s %v", l.name, msg, fields)
}

// Error logs an error message
func (l *simpleLogger) Error(msg string, fields map[string]interface{}) {
	log.Printf("[ERROR] %s: %s %v", l.name, msg, fields)
}

// Fatal logs a fatal message and exits
func (l *simpleLogger) Fatal(msg string, fields map[string]interface{}) {
	log.Fatalf("[FATAL] %s: %s %v", l.name, msg, fields)
}

// WithPrefix creates a new logger with the combined name
func (l *simpleLogger) WithPrefix(prefix string) Logger {
	return NewLogger(l.name + "." + prefix)
}

// InitTracing initializes tracing. Distributed tracing is out of scope for
// this service; kept as a no-op so bootstrap code that calls it uniformly
// across services doesn't need a special case here.
func InitTracing(cfg Config) error {
	return nil
}

// Shutdown shuts down all observability components
func Shutdown() {
	// Stub implementation
}

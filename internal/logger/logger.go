// Package logger provides centralized logging functionality for parley.
// It configures structured logging with support for different output formats and log levels.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger is the global logger instance used throughout parley.
var Logger *log.Logger

func init() {
	Logger = log.New(os.Stderr)

	// No timestamps: output stays stable across runs
	Logger.SetTimeFormat("")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets up the logger based on CLI flags and environment variables.
// CLI flags take precedence over environment variables.
func Configure(logLevel string, logFile string, testMode bool) error {
	// Set log level with precedence: CLI flag > env var > default
	level := logLevel
	if level == "" {
		level = strings.ToLower(os.Getenv("PARLEY_LOG_LEVEL"))
	}
	if level == "" {
		level = "info"
	}

	// Set log output destination
	var output io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		output = file
	}

	Logger = log.New(output)
	Logger.SetTimeFormat("")
	Logger.SetLevel(parseLogLevel(level))

	if testMode {
		// Deterministic output in test mode
		Logger.SetTimeFormat("")
		Logger.SetLevel(log.InfoLevel)
	}

	return nil
}

// parseLogLevel converts string to log level
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatal logs a fatal message with optional key-value pairs and exits.
func Fatal(msg interface{}, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
}

// APIRequest logs backend request details for debugging.
func APIRequest(method string, path string, status int) {
	Debug("API request", "method", method, "path", path, "status", status)
}

// StreamEvent logs streaming transport event details for debugging.
func StreamEvent(event string, details ...interface{}) {
	Debug("Stream event", "event", event, "details", details)
}

// SessionTransition logs session store state transitions for debugging.
func SessionTransition(from string, to string, reason string) {
	Debug("Session transition", "from", from, "to", to, "reason", reason)
}

// NewStyledLogger creates a new logger with custom styles and prefix for component-specific logging.
// The prefix parameter is used to create a component-specific logger (e.g., "Stream", "Registry", etc.)
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")). // Blue background
		Foreground(lipgloss.Color("15"))  // White text

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")). // Red background
		Foreground(lipgloss.Color("15"))   // White text

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("240")). // Gray background
		Foreground(lipgloss.Color("15"))   // White text

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")). // Orange background
		Foreground(lipgloss.Color("15"))   // White text

	// Key styling for common component keys
	styles.Keys["state"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))     // Purple
	styles.Keys["chat_id"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))   // Blue
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))    // Red
	styles.Keys["event"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))     // Green
	styles.Keys["component"] = lipgloss.NewStyle().Foreground(lipgloss.Color("51")) // Cyan

	styles.Values["state"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	componentLogger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: prefix + " ",
	})
	componentLogger.SetStyles(styles)
	componentLogger.SetLevel(Logger.GetLevel())

	return componentLogger
}

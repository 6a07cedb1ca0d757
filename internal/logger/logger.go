// Package logger wraps log/slog with the small helper surface used across imgfetch.
// Diagnostics go to stderr so that per-URL status lines on stdout stay machine readable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// OutputFormat selects the slog handler.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

var (
	// testOutput is used to capture log output during tests
	testOutput   io.Writer
	testOutputMu sync.Mutex
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

var (
	current      atomic.Pointer[slog.Logger]
	currentLevel = new(slog.LevelVar)
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
}

func getOutput() io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// ParseLevel maps a config log level to a slog level, falling back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the global logger. It may be called again to reconfigure it.
func InitLogger(logLevel string, format OutputFormat) {
	currentLevel.Set(ParseLevel(logLevel))
	current.Store(slog.New(newHandler(format)))
}

func newHandler(format OutputFormat) slog.Handler {
	opts := &slog.HandlerOptions{Level: currentLevel}
	if format == FormatJSON {
		return slog.NewJSONHandler(getOutput(), opts)
	}
	return slog.NewTextHandler(getOutput(), opts)
}

// GetLogger returns the configured logger instance, installing an info-level
// text logger on first use. Safe for concurrent use.
func GetLogger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	current.CompareAndSwap(nil, slog.New(newHandler(FormatText)))
	return current.Load()
}

// With returns a child logger carrying the given fields on every record.
func With(fields Fields) *slog.Logger {
	return GetLogger().With(mergeFields(fields)...)
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, mergeFields(fields...)...)
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, mergeFields(fields...)...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, mergeFields(fields...)...)
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, mergeFields(fields...)...)
}

// Success logs a success message as info with success indicator.
func Success(msg string, fields ...Fields) {
	allFields := mergeFields(fields...)
	allFields = append(allFields, "status", "success")
	GetLogger().Info(msg, allFields...)
}

// mergeFields merges multiple field maps into one slice of key-value pairs for slog.
// Later maps win on duplicate keys.
func mergeFields(fields ...Fields) []interface{} {
	merged := make(map[string]interface{})
	order := make([]string, 0)
	for _, field := range fields {
		for k, v := range field {
			if _, seen := merged[k]; !seen {
				order = append(order, k)
			}
			merged[k] = v
		}
	}
	result := make([]interface{}, 0, len(order)*2)
	for _, k := range order {
		result = append(result, k, merged[k])
	}
	return result
}

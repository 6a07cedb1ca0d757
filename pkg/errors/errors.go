package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists (use --force to overwrite)")
	ErrConfigMarshal     = fmt.Errorf("failed to marshal config to YAML")
	ErrUnknownConfigKey  = fmt.Errorf("unknown configuration key")
	ErrInvalidValue      = fmt.Errorf("invalid configuration value")

	// Settings validation errors.
	ErrDestDirEmpty         = fmt.Errorf("dest_dir cannot be empty")
	ErrHTTPTimeoutNegative  = fmt.Errorf("http_timeout cannot be negative")
	ErrMaxConcurrentInvalid = fmt.Errorf("max_concurrent must be at least 1")
	ErrInvalidBackend       = fmt.Errorf("invalid store backend")
	ErrS3BucketEmpty        = fmt.Errorf("s3.bucket cannot be empty when backend is s3")
	ErrInvalidOutputFormat  = fmt.Errorf("invalid output format")
	ErrInvalidLogLevel      = fmt.Errorf("invalid log level")

	// Fetch errors. These are the reasons a single URL can be rejected or fail.
	ErrInvalidURL  = fmt.Errorf("invalid URL")
	ErrConnection  = fmt.Errorf("connection error")
	ErrHTTPStatus  = fmt.Errorf("unexpected HTTP status")
	ErrNotAnImage  = fmt.Errorf("not an image")
	ErrIO          = fmt.Errorf("i/o error")
	ErrInvalidName = fmt.Errorf("invalid file name")

	// Batch errors.
	ErrFetchFailures = fmt.Errorf("one or more URLs were not fetched")

	// Store errors.
	ErrStoreDirectory = fmt.Errorf("store directory cannot be empty")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrInvalidBackendWithName is a helper to create a wrapped error with the rejected backend.
func ErrInvalidBackendWithName(name string) error {
	return fmt.Errorf("%w: '%s', must be one of: fs, s3", ErrInvalidBackend, name)
}

// ErrInvalidOutputFormatWithDetails is a helper to create a wrapped error with the invalid format and valid options.
func ErrInvalidOutputFormatWithDetails(format string) error {
	return fmt.Errorf("%w: '%s', must be one of: text, json", ErrInvalidOutputFormat, format)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: debug, info, warn, error", ErrInvalidLogLevel, level)
}

// ErrUnknownConfigKeyWithName creates an error for an unsupported configuration key.
func ErrUnknownConfigKeyWithName(key string) error {
	return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
}

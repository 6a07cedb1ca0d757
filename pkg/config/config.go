// Package config loads and saves imgfetch settings. Values come from a YAML file,
// then from IMGFETCH_* environment variables (optionally seeded from a .env file),
// then from command line flags applied by the CLI.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Store settings
	DestDir string   `yaml:"dest_dir"`
	Backend string   `yaml:"backend"` // fs, s3
	S3      S3Config `yaml:"s3,omitempty"`

	// Network settings
	HTTPTimeout   time.Duration `yaml:"http_timeout"` // 0 disables the timeout
	MaxConcurrent int           `yaml:"max_concurrent"`
	UserAgent     string        `yaml:"user_agent,omitempty"`

	// Output settings
	OutputFormat string `yaml:"output_format"` // text, json
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
	Progress     bool   `yaml:"progress"`
	MetricsFile  string `yaml:"metrics_file,omitempty"`
}

// S3Config selects the bucket used by the s3 backend. Empty credentials fall back
// to the default AWS credential chain.
type S3Config struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// Store backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Default configuration values.
const (
	// DefaultDestDir is relative to the working directory.
	DefaultDestDir = "Fetched_Images"

	// DefaultHTTPTimeout bounds one image request including its body.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultMaxConcurrent fetches one URL at a time.
	DefaultMaxConcurrent = 1

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			DestDir:       DefaultDestDir,
			Backend:       BackendFS,
			HTTPTimeout:   DefaultHTTPTimeout,
			MaxConcurrent: DefaultMaxConcurrent,
			OutputFormat:  "text",
			LogLevel:      "info",
			Progress:      true,
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
// Keys absent from the document keep their default values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig writes the configuration atomically. The file may hold S3 credentials,
// so it is only readable by the owner's group.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := fsutil.EnsureSecureDir(filepath.Dir(absPath)); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	_ = encoder.Close()

	if _, err := fsutil.WriteAtomic(absPath, &buf, fsutil.FileModeSecure); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML renders the config for display. The S3 secret is masked.
func (c *Config) ToYAML() ([]byte, error) {
	shown := *c
	if shown.Settings.S3.SecretAccessKey != "" {
		shown.Settings.S3.SecretAccessKey = secretMask
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	return validateSettings(c.Settings)
}

func validateSettings(s Settings) error {
	switch s.Backend {
	case BackendFS:
		if strings.TrimSpace(s.DestDir) == "" {
			return errors.ErrDestDirEmpty
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			return errors.ErrS3BucketEmpty
		}
	default:
		return errors.ErrInvalidBackendWithName(s.Backend)
	}
	if s.HTTPTimeout < 0 {
		return errors.ErrHTTPTimeoutNegative
	}
	if s.MaxConcurrent < 1 {
		return errors.ErrMaxConcurrentInvalid
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.OutputFormat] {
		return errors.ErrInvalidOutputFormatWithDetails(s.OutputFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	path, err := fsutil.GetConfigPath()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return path, nil
}

// applyDefaults fills in values that were explicitly emptied in the file.
// http_timeout is left alone: an explicit 0 disables the request timeout.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.DestDir == "" {
		c.Settings.DestDir = defaults.Settings.DestDir
	}
	if c.Settings.Backend == "" {
		c.Settings.Backend = defaults.Settings.Backend
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}

package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/glorpus-work/imgfetch/pkg/errors"
)

// Keys lists every configuration key in display order.
var Keys = []string{
	"dest_dir",
	"backend",
	"s3.bucket",
	"s3.prefix",
	"s3.region",
	"s3.endpoint",
	"s3.use_path_style",
	"s3.access_key_id",
	"s3.secret_access_key",
	"http_timeout",
	"max_concurrent",
	"user_agent",
	"output_format",
	"log_level",
	"progress",
	"metrics_file",
}

const secretMask = "********"

// SetValue sets a configuration value by key. Durations use time.ParseDuration syntax.
func (c *Config) SetValue(key, value string) error {
	s := &c.Settings
	switch key {
	case "dest_dir":
		s.DestDir = value
	case "backend":
		s.Backend = value
	case "s3.bucket":
		s.S3.Bucket = value
	case "s3.prefix":
		s.S3.Prefix = value
	case "s3.region":
		s.S3.Region = value
	case "s3.endpoint":
		s.S3.Endpoint = value
	case "s3.use_path_style":
		return setBool(&s.S3.UsePathStyle, key, value)
	case "s3.access_key_id":
		s.S3.AccessKeyID = value
	case "s3.secret_access_key":
		s.S3.SecretAccessKey = value
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %s", errors.ErrInvalidValue, key, value)
		}
		s.HTTPTimeout = d
	case "max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %s", errors.ErrInvalidValue, key, value)
		}
		s.MaxConcurrent = n
	case "user_agent":
		s.UserAgent = value
	case "output_format":
		s.OutputFormat = value
	case "log_level":
		s.LogLevel = value
	case "progress":
		return setBool(&s.Progress, key, value)
	case "metrics_file":
		s.MetricsFile = value
	default:
		return errors.ErrUnknownConfigKeyWithName(key)
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%w: invalid boolean for %s: %s", errors.ErrInvalidValue, key, value)
	}
	*dst = b
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	s := c.Settings
	switch key {
	case "dest_dir":
		return s.DestDir, nil
	case "backend":
		return s.Backend, nil
	case "s3.bucket":
		return s.S3.Bucket, nil
	case "s3.prefix":
		return s.S3.Prefix, nil
	case "s3.region":
		return s.S3.Region, nil
	case "s3.endpoint":
		return s.S3.Endpoint, nil
	case "s3.use_path_style":
		return strconv.FormatBool(s.S3.UsePathStyle), nil
	case "s3.access_key_id":
		return s.S3.AccessKeyID, nil
	case "s3.secret_access_key":
		return s.S3.SecretAccessKey, nil
	case "http_timeout":
		return s.HTTPTimeout.String(), nil
	case "max_concurrent":
		return strconv.Itoa(s.MaxConcurrent), nil
	case "user_agent":
		return s.UserAgent, nil
	case "output_format":
		return s.OutputFormat, nil
	case "log_level":
		return s.LogLevel, nil
	case "progress":
		return strconv.FormatBool(s.Progress), nil
	case "metrics_file":
		return s.MetricsFile, nil
	default:
		return "", errors.ErrUnknownConfigKeyWithName(key)
	}
}

// ToMap returns every key with its value for display. Secrets are masked.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(Keys))
	for _, key := range Keys {
		v, _ := c.GetValue(key)
		if key == "s3.secret_access_key" && v != "" {
			v = secretMask
		}
		result[key] = v
	}
	return result
}

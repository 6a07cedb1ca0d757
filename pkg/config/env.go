package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/glorpus-work/imgfetch/pkg/errors"
)

// EnvPrefix prefixes the environment variable of every key.
const EnvPrefix = "IMGFETCH_"

// EnvName returns the environment variable that overrides key, e.g. s3.bucket -> IMGFETCH_S3_BUCKET.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadEnvFiles loads the given .env files into the process environment.
// Missing files are skipped and variables already set are never replaced.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides settings from IMGFETCH_* variables found by lookup
// and validates the result. Pass os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys {
		value, ok := lookup(EnvName(key))
		if !ok {
			continue
		}
		if err := c.SetValue(key, value); err != nil {
			return errors.Wrapf(err, "from %s", EnvName(key))
		}
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	return nil
}

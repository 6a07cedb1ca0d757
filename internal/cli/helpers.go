package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/glorpus-work/imgfetch/internal/logger"
	"github.com/glorpus-work/imgfetch/pkg/config"
	"github.com/glorpus-work/imgfetch/pkg/store"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
)

// envFiles are loaded before the configuration file is read. Variables that are
// already set in the process environment win.
var envFiles = []string{".env", ".env.local"}

// loadConfig loads the configuration file, applies environment overrides and the
// global flags, and initializes logging accordingly.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	// Override config with CLI flags if provided
	if OutputFormat != nil && *OutputFormat != "" {
		cfg.Settings.OutputFormat = *OutputFormat
	}
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.Settings.LogLevel, logger.OutputFormat(cfg.Settings.OutputFormat))
	return cfg, nil
}

// openStore builds the store selected by the backend setting, creating the
// destination directory of the filesystem backend when needed.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return buildStore(ctx, cfg, false)
}

// inspectStore is openStore for read-only commands: it never creates anything.
func inspectStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return buildStore(ctx, cfg, true)
}

func buildStore(ctx context.Context, cfg *config.Config, readOnly bool) (store.Store, error) {
	s := cfg.Settings
	switch s.Backend {
	case config.BackendS3:
		client, err := store.NewS3Client(ctx, store.S3Options{
			Region:          s.S3.Region,
			Endpoint:        s.S3.Endpoint,
			UsePathStyle:    s.S3.UsePathStyle,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("Using S3 store", logger.Fields{"bucket": s.S3.Bucket, "prefix": s.S3.Prefix})
		return store.NewS3(client, s.S3.Bucket, s.S3.Prefix)
	default:
		logger.Debug("Using filesystem store", logger.Fields{"dir": s.DestDir, "read_only": readOnly})
		if readOnly {
			return store.OpenFS(s.DestDir)
		}
		return store.NewFS(s.DestDir)
	}
}

package fsutil

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the name of the application used in paths
	AppName = "imgfetch"

	// ConfigFileName is the name of the configuration file inside the config directory.
	ConfigFileName = "config.yaml"
)

// GetConfigDir returns the platform-specific configuration directory for the application
// On Linux: ~/.config/imgfetch/
// On macOS: ~/Library/Application Support/imgfetch/
// On Windows: %AppData%\imgfetch\
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// IsTempName reports whether name was produced by WriteAtomic for an in-flight write.
func IsTempName(name string) bool {
	matched, err := filepath.Match(TempPattern, name)
	return err == nil && matched
}

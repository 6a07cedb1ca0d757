// Package fsutil provides utility functions and constants for file system operations.
package fsutil

// File and directory permission constants.
// These follow standard Unix permission conventions and are used consistently
// throughout the application to ensure consistent file and directory permissions.
const (
	// Default file modes.
	FileModeDefault = 0o644 // -rw-r--r--: Default for stored images
	FileModeSecure  = 0o640 // -rw-r-----: For config files holding credentials

	// Directory modes.
	DirModeDefault = 0o755 // drwxr-xr-x: Default for directories
	DirModeSecure  = 0o750 // drwxr-x---: For config directories

	// TempPattern is the os.CreateTemp pattern used for in-flight writes.
	// Files matching it are never reported as stored content.
	TempPattern = ".imgfetch-*.tmp"
)

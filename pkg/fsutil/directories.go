package fsutil

import (
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all necessary parent directories with default permissions if they don't exist.
// Creating a directory that already exists is not an error.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// EnsureSecureDir is EnsureDir for directories holding credentials.
func EnsureSecureDir(path string) error {
	return os.MkdirAll(path, DirModeSecure)
}

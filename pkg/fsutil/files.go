package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Move moves a regular file from src to dst, replacing dst if it exists.
// It first attempts os.Rename, which is atomic within one filesystem.
// If that fails due to cross-filesystem boundaries, it falls back to copy + delete.
func Move(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("source and destination paths cannot be empty")
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("source %s is a directory", src)
	}

	if err := EnsureFileDir(dst); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", filepath.Dir(dst), err)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !isCrossFilesystemError(err) {
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}

	return moveFile(src, dst, srcInfo)
}

// isCrossFilesystemError determines if an error from os.Rename indicates
// a cross-filesystem boundary issue that requires fallback to copy+delete.
func isCrossFilesystemError(err error) bool {
	if err == nil {
		return false
	}

	var linkError *os.LinkError
	if errors.As(err, &linkError) {
		if errno, ok := linkError.Err.(syscall.Errno); ok {
			return errno == syscall.EXDEV
		}
	}

	// Fallback to string matching where EXDEV isn't surfaced as an errno.
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "cross-device") || strings.Contains(errMsg, "cross device")
}

// moveFile handles moving a single file across filesystem boundaries.
func moveFile(src, dst string, srcInfo os.FileInfo) error {
	if err := Copy(src, dst); err != nil {
		return fmt.Errorf("failed to copy file %s to %s: %w", src, dst, err)
	}

	if err := os.Chmod(dst, srcInfo.Mode()); err != nil {
		_ = os.Remove(src)
		return fmt.Errorf("failed to set permissions on %s: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source file %s after copy: %w", src, err)
	}

	return nil
}

// Copy copies the contents of srcFile to dstFile.
func Copy(srcFile, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer src.Close()

	dst, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dstFile, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy from %s to %s: %w", srcFile, dstFile, err)
	}

	return dst.Sync()
}

// WriteAtomic writes r to a temporary file next to path and renames it over path,
// so readers only ever observe the old content or the complete new content.
// It returns the number of bytes written.
func WriteAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return 0, fmt.Errorf("could not create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("could not write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("could not sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("could not close file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return 0, fmt.Errorf("could not set permissions: %w", err)
	}
	if err := Move(tmpPath, path); err != nil {
		return 0, fmt.Errorf("could not finalize file: %w", err)
	}

	committed = true
	return n, nil
}

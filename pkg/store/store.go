//go:generate mockgen -destination=./mocks/store.go -package=mocks . Store,S3API

// Package store persists fetched images under their resolved names.
// A name holds at most one image; writing an existing name replaces it atomically.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/hash"
)

// Store is the destination of fetched images.
type Store interface {
	// Exists reports whether an image is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// ContentEquals compares the digest of the stored image with the digest of candidate.
	// It fails with errors.ErrIO when the stored image cannot be read.
	ContentEquals(ctx context.Context, name string, candidate []byte) (bool, error)

	// Write stores data under name. No partial content is ever visible under name.
	Write(ctx context.Context, name string, data []byte) (*StoredImage, error)

	// Lock serializes Exists/ContentEquals/Write sequences for one name.
	// The returned function releases the lock and is safe to call more than once.
	Lock(name string) (unlock func())

	// Location is the user-facing path or URI of name.
	Location(name string) string

	// List returns the images currently stored, sorted by name.
	List(ctx context.Context) ([]StoredImage, error)
}

// StoredImage describes one image in a Store.
type StoredImage struct {
	Name     string      `json:"name"`
	Location string      `json:"location"`
	Size     int64       `json:"size"`
	Digest   hash.Digest `json:"-"`
	ModTime  time.Time   `json:"mod_time,omitempty"`
}

// validateName rejects names that would address anything but a direct child of the store.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", errors.ErrInvalidName, name)
	}
	return nil
}

// ioError tags err as a local storage failure.
func ioError(err error, format string, args ...interface{}) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", errors.ErrIO, err), format, args...)
}

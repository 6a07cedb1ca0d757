package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/fsutil"
	"github.com/glorpus-work/imgfetch/pkg/hash"
)

var _ Store = (*FS)(nil)

// FS stores images as regular files in one directory.
type FS struct {
	NameLocks
	dir string
}

// NewFS returns a filesystem store rooted at dir, creating the directory if needed.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.ErrStoreDirectory
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, ioError(err, "could not create store directory %s", dir)
	}
	return &FS{dir: dir}, nil
}

// OpenFS returns a filesystem store rooted at dir without creating it.
// A missing directory behaves like an empty store until something is written.
func OpenFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.ErrStoreDirectory
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, ioError(fmt.Errorf("%s is not a directory", dir), "open store")
	case err != nil && !os.IsNotExist(err):
		return nil, ioError(err, "open store %s", dir)
	}
	return &FS{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FS) Dir() string {
	return s.dir
}

// Location returns the path name is stored at.
func (s *FS) Location(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FS) Exists(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(s.Location(name))
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, ioError(err, "stat %s", name)
	}
}

func (s *FS) ContentEquals(_ context.Context, name string, candidate []byte) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	existing, err := hash.FromFile(s.Location(name))
	if err != nil {
		return false, errors.Wrapf(err, "hash existing %s", name)
	}
	return existing.Equal(hash.FromBytes(candidate)), nil
}

func (s *FS) Write(_ context.Context, name string, data []byte) (*StoredImage, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := s.Location(name)
	n, err := fsutil.WriteAtomic(path, bytes.NewReader(data), fsutil.FileModeDefault)
	if err != nil {
		return nil, ioError(err, "write %s", name)
	}
	img := &StoredImage{
		Name:     name,
		Location: path,
		Size:     n,
		Digest:   hash.FromBytes(data),
	}
	if info, err := os.Stat(path); err == nil {
		img.ModTime = info.ModTime()
	}
	return img, nil
}

// List returns the regular files in the store directory. In-flight temp files are skipped.
func (s *FS) List(_ context.Context) ([]StoredImage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError(err, "read store directory %s", s.dir)
	}
	images := make([]StoredImage, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || fsutil.IsTempName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		images = append(images, StoredImage{
			Name:     e.Name(),
			Location: s.Location(e.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

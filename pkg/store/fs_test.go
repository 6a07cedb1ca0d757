package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	pkgerrors "github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(filepath.Join(t.TempDir(), "Fetched_Images"))
	require.NoError(t, err)
	return s
}

func TestNewFS(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		s, err := NewFS(dir)
		require.NoError(t, err)
		assert.DirExists(t, dir)
		assert.Equal(t, dir, s.Dir())
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("keep"), 0o644))

		_, err := NewFS(dir)
		require.NoError(t, err)

		_, err = NewFS(dir)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dir, "unrelated.txt"))
		require.NoError(t, err)
		assert.Equal(t, "keep", string(got))
	})

	t.Run("empty directory rejected", func(t *testing.T) {
		_, err := NewFS("")
		assert.ErrorIs(t, err, pkgerrors.ErrStoreDirectory)
	})
}

func TestFS_WriteExistsContentEquals(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t)

	exists, err := s.Exists(ctx, "cat.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	img, err := s.Write(ctx, "cat.jpg", []byte("meow"))
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", img.Name)
	assert.Equal(t, filepath.Join(s.Dir(), "cat.jpg"), img.Location)
	assert.Equal(t, int64(4), img.Size)
	assert.True(t, img.Digest.Equal(hash.FromBytes([]byte("meow"))))

	exists, err = s.Exists(ctx, "cat.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	same, err := s.ContentEquals(ctx, "cat.jpg", []byte("meow"))
	require.NoError(t, err)
	assert.True(t, same)

	same, err = s.ContentEquals(ctx, "cat.jpg", []byte("woof"))
	require.NoError(t, err)
	assert.False(t, same)
}

func TestFS_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t)

	_, err := s.Write(ctx, "cat.jpg", []byte("first"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "cat.jpg", []byte("second"))
	require.NoError(t, err)

	got, err := os.ReadFile(s.Location("cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	images, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
}

func TestFS_ContentEquals_Unreadable(t *testing.T) {
	s := newTestFS(t)

	_, err := s.ContentEquals(context.Background(), "missing.jpg", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrIO))
}

func TestFS_Write_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("Skipping permission test when running as root")
	}
	s := newTestFS(t)
	require.NoError(t, os.Chmod(s.Dir(), 0o555))
	t.Cleanup(func() { _ = os.Chmod(s.Dir(), 0o755) })

	_, err := s.Write(context.Background(), "cat.jpg", []byte("meow"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrIO))
}

func TestFS_InvalidNames(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t)

	for _, name := range []string{"", ".", "..", "a/b.jpg", `a\b.jpg`} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Exists(ctx, name)
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidName)
			_, err = s.Write(ctx, name, []byte("x"))
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidName)
			_, err = s.ContentEquals(ctx, name, []byte("x"))
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidName)
		})
	}
}

func TestFS_Exists_Directory(t *testing.T) {
	s := newTestFS(t)
	require.NoError(t, os.Mkdir(s.Location("folder.jpg"), 0o755))

	exists, err := s.Exists(context.Background(), "folder.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFS_List(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t)

	_, err := s.Write(ctx, "b.png", []byte("bb"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "a.jpg", []byte("a"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), ".imgfetch-123.tmp"), []byte("partial"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub"), 0o755))

	images, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.jpg", images[0].Name)
	assert.Equal(t, int64(1), images[0].Size)
	assert.Equal(t, "b.png", images[1].Name)
	assert.Equal(t, int64(2), images[1].Size)
}

func TestFS_ConcurrentWritesSameName(t *testing.T) {
	ctx := context.Background()
	s := newTestFS(t)

	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three"), []byte("four")}
	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			unlock := s.Lock("race.jpg")
			defer unlock()
			_, err := s.Write(ctx, "race.jpg", p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := os.ReadFile(s.Location("race.jpg"))
	require.NoError(t, err)
	assert.Contains(t, []string{"one", "two", "three", "four"}, string(got))

	images, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Equal(t, 0, s.Len())
}

func TestOpenFS(t *testing.T) {
	t.Run("missing directory is not created", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Fetched_Images")
		s, err := OpenFS(dir)
		require.NoError(t, err)

		images, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, images)

		exists, err := s.Exists(context.Background(), "cat.jpg")
		require.NoError(t, err)
		assert.False(t, exists)

		assert.NoDirExists(t, dir)
	})

	t.Run("existing directory is listed", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.jpg"), []byte("meow"), 0o644))

		s, err := OpenFS(dir)
		require.NoError(t, err)
		images, err := s.List(context.Background())
		require.NoError(t, err)
		require.Len(t, images, 1)
		assert.Equal(t, "cat.jpg", images[0].Name)
	})

	t.Run("path is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := OpenFS(path)
		assert.ErrorIs(t, err, pkgerrors.ErrIO)
	})

	t.Run("empty dir", func(t *testing.T) {
		_, err := OpenFS("")
		assert.ErrorIs(t, err, pkgerrors.ErrStoreDirectory)
	})
}

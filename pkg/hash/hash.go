// Package hash computes SHA-256 content digests used to recognise duplicate downloads.
// A digest computed from a file, a reader or an in-memory buffer is identical for identical bytes.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/glorpus-work/imgfetch/pkg/errors"
)

// ChunkSize is the read size used when streaming a source into the hasher.
const ChunkSize = 4096

// Size is the length of a Digest in bytes.
const Size = sha256.Size

// Digest is a SHA-256 content digest.
type Digest [Size]byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Equal reports whether two digests are identical.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d[:], other[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FromBytes digests an in-memory buffer.
func FromBytes(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// FromReader streams r through the hasher in ChunkSize reads.
func FromReader(r io.Reader) (Digest, error) {
	w := New()
	if _, err := io.CopyBuffer(w, onlyReader{r}, make([]byte, ChunkSize)); err != nil {
		return Digest{}, errors.Wrap(fmt.Errorf("%w: %w", errors.ErrIO, err), "hashing")
	}
	return w.Sum(), nil
}

// FromFile streams the file at path through the hasher.
func FromFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open for hashing: %w: %w", errors.ErrIO, err)
	}
	defer func() { _ = f.Close() }()
	return FromReader(f)
}

// Writer accumulates a digest from everything written to it.
// It is meant to sit behind an io.MultiWriter so a body is hashed while it is copied.
type Writer struct {
	h hash.Hash
	n int64
}

// New returns an empty digest Writer.
func New() *Writer {
	return &Writer{h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	return n, err
}

// Sum returns the digest of the bytes written so far.
func (w *Writer) Sum() Digest {
	var d Digest
	copy(d[:], w.h.Sum(nil))
	return d
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int64 {
	return w.n
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer honours the chunk size.
type onlyReader struct {
	io.Reader
}

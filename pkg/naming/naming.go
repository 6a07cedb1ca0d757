// Package naming derives local file names from image URLs.
package naming

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glorpus-work/imgfetch/pkg/errors"
)

// DefaultName is used when a URL carries no usable file name.
const DefaultName = "downloaded_image.jpg"

// Resolve returns the final segment of the URL path, or DefaultName when that
// segment is empty or not a plausible file name. Query and fragment are ignored.
// It fails only when rawURL cannot be parsed.
func Resolve(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", errors.ErrInvalidURL, rawURL, err)
	}
	return fromEscapedPath(u.EscapedPath()), nil
}

// fromEscapedPath works on the escaped form so that an encoded separator
// inside the last segment is still recognised after decoding.
func fromEscapedPath(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return DefaultName
	}
	seg := p[strings.LastIndex(p, "/")+1:]
	name, err := url.PathUnescape(seg)
	if err != nil || !plausible(name) {
		return DefaultName
	}
	return name
}

func plausible(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	switch name {
	case ".", "..":
		return false
	}
	// A decoded %2F or a backslash would escape the store directory.
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return !strings.ContainsRune(name, 0)
}

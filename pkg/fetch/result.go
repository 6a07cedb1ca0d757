package fetch

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/hash"
)

// Request is one URL to fetch.
type Request struct {
	URL string
}

// Outcome is the terminal state of one fetch.
type Outcome string

const (
	// Saved means the image was written to the store.
	Saved Outcome = "saved"
	// Skipped means an identical image was already stored under the same name.
	Skipped Outcome = "skipped"
	// Rejected means the response did not declare an image content type.
	Rejected Outcome = "rejected"
	// Failed means the URL could not be fetched or stored.
	Failed Outcome = "failed"
)

// ErrorKind classifies why a fetch was rejected or failed.
type ErrorKind string

const (
	KindInvalidURL ErrorKind = "invalid_url"
	KindConnection ErrorKind = "connection"
	KindHTTP       ErrorKind = "http"
	KindNotAnImage ErrorKind = "not_an_image"
	KindIO         ErrorKind = "io"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidURL:
		return errors.ErrInvalidURL
	case KindConnection:
		return errors.ErrConnection
	case KindHTTP:
		return errors.ErrHTTPStatus
	case KindNotAnImage:
		return errors.ErrNotAnImage
	case KindIO:
		return errors.ErrIO
	default:
		return nil
	}
}

// Error is the reason attached to a Rejected or Failed result.
// It matches the corresponding sentinel from pkg/errors with errors.Is.
type Error struct {
	Kind        ErrorKind
	URL         string
	StatusCode  int
	ContentType string
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case KindNotAnImage:
		if e.ContentType == "" {
			return "no content type declared"
		}
		return fmt.Sprintf("content type %s is not an image", e.ContentType)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Err)
	}
	return e.Kind.sentinel().Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Result is the outcome of fetching one URL. Path and Name are set for Saved and Skipped.
type Result struct {
	URL         string
	Outcome     Outcome
	Name        string
	Path        string
	Size        int64
	ContentType string
	Digest      hash.Digest
	Duration    time.Duration
	Err         error
}

// Kind returns the error kind of a Rejected or Failed result, or "" otherwise.
func (r Result) Kind() ErrorKind {
	var fe *Error
	if stderrors.As(r.Err, &fe) {
		return fe.Kind
	}
	return ""
}

type resultJSON struct {
	URL         string  `json:"url"`
	Outcome     Outcome `json:"outcome"`
	Name        string  `json:"name,omitempty"`
	Path        string  `json:"path,omitempty"`
	Size        int64   `json:"size,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	SHA256      string  `json:"sha256,omitempty"`
	DurationMS  int64   `json:"duration_ms"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// MarshalJSON renders the result for --output json.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		URL:         r.URL,
		Outcome:     r.Outcome,
		Name:        r.Name,
		Path:        r.Path,
		Size:        r.Size,
		ContentType: r.ContentType,
		DurationMS:  r.Duration.Milliseconds(),
		ErrorKind:   string(r.Kind()),
	}
	if !r.Digest.IsZero() {
		out.SHA256 = r.Digest.String()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

func newError(kind ErrorKind, url string, err error) *Error {
	return &Error{Kind: kind, URL: url, Err: err}
}

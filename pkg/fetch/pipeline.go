//go:generate mockgen -destination=./mocks/fetch.go -package=mocks . Doer

// Package fetch downloads one image URL into a store and reports what happened.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glorpus-work/imgfetch/internal/logger"
	"github.com/glorpus-work/imgfetch/pkg/hash"
	"github.com/glorpus-work/imgfetch/pkg/naming"
	"github.com/glorpus-work/imgfetch/pkg/store"
)

const (
	// DefaultTimeout bounds one request including the body read.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "imgfetch"

	// drainLimit caps how much of a discarded body is read so the connection can be reused.
	drainLimit = 64 << 10
	// maxPresize caps the buffer reserved from a declared Content-Length.
	// Larger bodies still grow the buffer as bytes actually arrive.
	maxPresize = 32 << 20
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pipeline fetches single URLs. It is safe for concurrent use.
type Pipeline struct {
	client    Doer
	userAgent string
	timeout   time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClient replaces the HTTP client.
func WithClient(c Doer) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.timeout = d
		}
	}
}

// NewPipeline creates a pipeline with the default client, user agent and timeout.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = NewHTTPClient(nil)
	}
	return p
}

// Fetch downloads req.URL and stores it in st. It never returns an error:
// every failure is reported in the Result.
func (p *Pipeline) Fetch(ctx context.Context, req Request, st store.Store) Result {
	start := time.Now()
	res := p.fetch(ctx, req, st)
	res.URL = req.URL
	res.Duration = time.Since(start)

	fields := logger.Fields{
		"url":      req.URL,
		"outcome":  string(res.Outcome),
		"duration": res.Duration.String(),
	}
	if res.Name != "" {
		fields["name"] = res.Name
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
	}
	logger.Debug("Fetch finished", fields)
	return res
}

func (p *Pipeline) fetch(ctx context.Context, req Request, st store.Store) Result {
	u, ferr := parseURL(req.URL)
	if ferr != nil {
		return Result{Outcome: Failed, Err: ferr}
	}

	body, ferr := p.download(ctx, u)
	if ferr != nil {
		outcome := Failed
		if ferr.Kind == KindNotAnImage {
			outcome = Rejected
		}
		return Result{Outcome: outcome, ContentType: ferr.ContentType, Err: ferr}
	}

	res := Result{
		Size:        int64(len(body.data)),
		ContentType: body.contentType,
		Digest:      body.digest,
	}

	name, err := naming.Resolve(req.URL)
	if err != nil {
		res.Outcome = Failed
		res.Err = newError(KindInvalidURL, req.URL, err)
		return res
	}
	res.Name = name

	unlock := st.Lock(name)
	defer unlock()

	exists, err := st.Exists(ctx, name)
	if err != nil {
		res.Outcome = Failed
		res.Err = newError(KindIO, req.URL, err)
		return res
	}
	if exists {
		same, err := st.ContentEquals(ctx, name, body.data)
		if err != nil {
			res.Outcome = Failed
			res.Err = newError(KindIO, req.URL, err)
			return res
		}
		if same {
			logger.Debug("Identical image already stored", logger.Fields{"name": name, "sha256": body.digest.String()})
			res.Outcome = Skipped
			res.Path = st.Location(name)
			return res
		}
		logger.Debug("Replacing image with different content", logger.Fields{"name": name})
	}

	img, err := st.Write(ctx, name, body.data)
	if err != nil {
		res.Outcome = Failed
		res.Err = newError(KindIO, req.URL, err)
		return res
	}
	res.Outcome = Saved
	res.Path = img.Location
	res.Size = img.Size
	return res
}

type downloaded struct {
	data        []byte
	contentType string
	digest      hash.Digest
}

// download performs the GET under the request timeout and buffers an image body,
// hashing it while it is read.
func (p *Pipeline) download(ctx context.Context, u *url.URL) (*downloaded, *Error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rawURL := u.String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, newError(KindInvalidURL, rawURL, err)
	}
	httpReq.Header.Set("User-Agent", p.userAgent)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, newError(KindConnection, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		e := newError(KindHTTP, rawURL, nil)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	declared := resp.Header.Get("Content-Type")
	mediaType, ok := imageMediaType(declared)
	if !ok {
		drain(resp.Body)
		e := newError(KindNotAnImage, rawURL, nil)
		e.ContentType = declared
		return nil, e
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(min(resp.ContentLength, maxPresize)))
	}
	hw := hash.New()
	if _, err := io.Copy(io.MultiWriter(&buf, hw), resp.Body); err != nil {
		return nil, newError(KindConnection, rawURL, fmt.Errorf("reading body: %w", err))
	}

	return &downloaded{
		data:        buf.Bytes(),
		contentType: mediaType,
		digest:      hw.Sum(),
	}, nil
}

// parseURL accepts absolute http and https URLs with a host.
func parseURL(raw string) (*url.URL, *Error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newError(KindInvalidURL, raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, newError(KindInvalidURL, raw, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, newError(KindInvalidURL, raw, fmt.Errorf("missing host"))
	}
	return u, nil
}

// imageMediaType returns the lowercased media type when it is in the image/ category.
func imageMediaType(contentType string) (string, bool) {
	if contentType == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	if !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return mediaType, false
	}
	return mediaType, true
}

func drain(r io.Reader) {
	_, _ = io.CopyN(io.Discard, r, drainLimit)
}

package fetch

import (
	"net/http"

	"github.com/glorpus-work/imgfetch/internal/logger"
)

// NewHTTPClient returns a client whose transport logs every request at debug level.
// A nil base uses http.DefaultTransport. Timeouts are applied per request by the Pipeline.
func NewHTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &loggingTransport{base: base}}
}

type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger.Debug("HTTP request", logger.Fields{"method": req.Method, "url": req.URL.String()})
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	logger.Debug("HTTP response", logger.Fields{
		"url":            req.URL.String(),
		"status":         resp.StatusCode,
		"content_type":   resp.Header.Get("Content-Type"),
		"content_length": resp.ContentLength,
	})
	return resp, nil
}

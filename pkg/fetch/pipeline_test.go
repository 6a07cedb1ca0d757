package fetch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/imgfetch/pkg/batch"
	pkgerrors "github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/fetch"
	fetchmocks "github.com/glorpus-work/imgfetch/pkg/fetch/mocks"
	"github.com/glorpus-work/imgfetch/pkg/hash"
	"github.com/glorpus-work/imgfetch/pkg/store"
	storemocks "github.com/glorpus-work/imgfetch/pkg/store/mocks"
)

// imageServer serves each path with the given content type and body.
func imageServer(t *testing.T, routes map[string]struct{ contentType, body string }) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if route.contentType != "" {
			w.Header().Set("Content-Type", route.contentType)
		} else {
			// Suppress net/http content sniffing.
			w.Header()["Content-Type"] = nil
		}
		_, _ = io.WriteString(w, route.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFSStore(t *testing.T) *store.FS {
	t.Helper()
	s, err := store.NewFS(filepath.Join(t.TempDir(), "Fetched_Images"))
	require.NoError(t, err)
	return s
}

func TestFetch_Saved(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/pics/cat.jpg": {"image/jpeg", "jpeg bytes"},
	})
	st := newFSStore(t)
	p := fetch.NewPipeline()

	res := p.Fetch(context.Background(), fetch.Request{URL: srv.URL + "/pics/cat.jpg?size=large#top"}, st)

	require.NoError(t, res.Err)
	assert.Equal(t, fetch.Saved, res.Outcome)
	assert.Equal(t, "cat.jpg", res.Name)
	assert.Equal(t, filepath.Join(st.Dir(), "cat.jpg"), res.Path)
	assert.Equal(t, int64(len("jpeg bytes")), res.Size)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.True(t, res.Digest.Equal(hash.FromBytes([]byte("jpeg bytes"))))
	assert.Equal(t, srv.URL+"/pics/cat.jpg?size=large#top", res.URL)
	assert.Empty(t, res.Kind())

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(got))
}

func TestFetch_RepeatedFetchIsSkipped(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/cat.jpg": {"image/jpeg", "same bytes"},
	})
	st := newFSStore(t)
	p := fetch.NewPipeline()
	ctx := context.Background()

	first := p.Fetch(ctx, fetch.Request{URL: srv.URL + "/cat.jpg"}, st)
	require.Equal(t, fetch.Saved, first.Outcome)
	before, err := os.Stat(first.Path)
	require.NoError(t, err)

	second := p.Fetch(ctx, fetch.Request{URL: srv.URL + "/cat.jpg"}, st)
	require.NoError(t, second.Err)
	assert.Equal(t, fetch.Skipped, second.Outcome)
	assert.Equal(t, first.Path, second.Path)

	after, err := os.Stat(second.Path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	got, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, "same bytes", string(got))
}

func TestFetch_SameNameDifferentContentOverwrites(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/a/cat.jpg": {"image/jpeg", "first cat"},
		"/b/cat.jpg": {"image/jpeg", "second cat"},
	})
	st := newFSStore(t)
	p := fetch.NewPipeline()
	ctx := context.Background()

	first := p.Fetch(ctx, fetch.Request{URL: srv.URL + "/a/cat.jpg"}, st)
	second := p.Fetch(ctx, fetch.Request{URL: srv.URL + "/b/cat.jpg"}, st)

	assert.Equal(t, fetch.Saved, first.Outcome)
	assert.Equal(t, fetch.Saved, second.Outcome)
	assert.Equal(t, first.Path, second.Path)

	got, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, "second cat", string(got))

	images, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestFetch_FallbackName(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/":         {"image/png", "root png"},
		"/gallery/": {"image/png", "dir png"},
	})
	st := newFSStore(t)
	p := fetch.NewPipeline()

	for _, u := range []string{srv.URL, srv.URL + "/", srv.URL + "/gallery/"} {
		res := p.Fetch(context.Background(), fetch.Request{URL: u}, st)
		require.NoError(t, res.Err, u)
		assert.Equal(t, "downloaded_image.jpg", res.Name, u)
	}
}

func TestFetch_RejectsNonImages(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{name: "html", contentType: "text/html; charset=utf-8"},
		{name: "json", contentType: "application/json"},
		{name: "missing", contentType: ""},
		{name: "bare image category", contentType: "image/"},
		{name: "image word elsewhere", contentType: "application/image+xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := imageServer(t, map[string]struct{ contentType, body string }{
				"/cat.jpg": {tt.contentType, "<html>not a cat</html>"},
			})
			st := newFSStore(t)

			res := fetch.NewPipeline().Fetch(context.Background(), fetch.Request{URL: srv.URL + "/cat.jpg"}, st)

			assert.Equal(t, fetch.Rejected, res.Outcome)
			assert.Equal(t, fetch.KindNotAnImage, res.Kind())
			assert.ErrorIs(t, res.Err, pkgerrors.ErrNotAnImage)
			assert.Empty(t, res.Path)

			images, err := st.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, images, "rejected body must not be written")
		})
	}
}

func TestFetch_AcceptsImageContentTypeVariants(t *testing.T) {
	for _, ct := range []string{"image/png", "IMAGE/PNG", "image/svg+xml; charset=utf-8", "image/webp;q=0.9"} {
		t.Run(ct, func(t *testing.T) {
			srv := imageServer(t, map[string]struct{ contentType, body string }{
				"/x.img": {ct, "pixels"},
			})
			res := fetch.NewPipeline().Fetch(context.Background(), fetch.Request{URL: srv.URL + "/x.img"}, newFSStore(t))
			require.NoError(t, res.Err)
			assert.Equal(t, fetch.Saved, res.Outcome)
			assert.True(t, strings.HasPrefix(res.ContentType, "image/"))
		})
	}
}

func TestFetch_HTTPStatusFailures(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.WriteHeader(status)
			}))
			defer srv.Close()

			res := fetch.NewPipeline().Fetch(context.Background(), fetch.Request{URL: srv.URL + "/cat.png"}, newFSStore(t))

			assert.Equal(t, fetch.Failed, res.Outcome)
			assert.Equal(t, fetch.KindHTTP, res.Kind())
			assert.ErrorIs(t, res.Err, pkgerrors.ErrHTTPStatus)

			var fe *fetch.Error
			require.ErrorAs(t, res.Err, &fe)
			assert.Equal(t, status, fe.StatusCode)
			assert.Contains(t, fe.Error(), http.StatusText(status))
		})
	}
}

func TestFetch_InvalidURLs(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := fetchmocks.NewMockDoer(ctrl)
	// No expectations: invalid URLs never reach the network.
	p := fetch.NewPipeline(fetch.WithClient(doer))

	for _, raw := range []string{"not a url", "ftp://example.com/cat.jpg", "http:///cat.jpg", "://missing-scheme", "example.com/cat.jpg"} {
		t.Run(raw, func(t *testing.T) {
			res := p.Fetch(context.Background(), fetch.Request{URL: raw}, newFSStore(t))
			assert.Equal(t, fetch.Failed, res.Outcome)
			assert.Equal(t, fetch.KindInvalidURL, res.Kind())
			assert.ErrorIs(t, res.Err, pkgerrors.ErrInvalidURL)
		})
	}
}

func TestFetch_ConnectionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := fetchmocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

	res := fetch.NewPipeline(fetch.WithClient(doer)).
		Fetch(context.Background(), fetch.Request{URL: "https://example.com/cat.jpg"}, newFSStore(t))

	assert.Equal(t, fetch.Failed, res.Outcome)
	assert.Equal(t, fetch.KindConnection, res.Kind())
	assert.ErrorIs(t, res.Err, pkgerrors.ErrConnection)
	assert.Contains(t, res.Err.Error(), "connection refused")
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("unexpected EOF") }
func (brokenBody) Close() error             { return nil }

func TestFetch_BodyReadErrorIsConnectionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := fetchmocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(&http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"image/jpeg"}},
		Body:       brokenBody{},
	}, nil)

	st := newFSStore(t)
	res := fetch.NewPipeline(fetch.WithClient(doer)).
		Fetch(context.Background(), fetch.Request{URL: "https://example.com/cat.jpg"}, st)

	assert.Equal(t, fetch.Failed, res.Outcome)
	assert.Equal(t, fetch.KindConnection, res.Kind())

	images, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)
}

// hugeLengthHandler declares an enormous Content-Length and then sends a few bytes.
func hugeLengthHandler(w http.ResponseWriter, _ *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking unsupported", http.StatusInternalServerError)
		return
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return
	}
	defer conn.Close()
	_, _ = rw.WriteString("HTTP/1.1 200 OK\r\n" +
		"Content-Type: image/png\r\n" +
		"Content-Length: 4611686018427387904\r\n" +
		"\r\n" +
		"abc")
	_ = rw.Flush()
}

func TestFetch_HugeDeclaredLengthFailsOnlyThatURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/huge.png", hugeLengthHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newFSStore(t)
	urls := []string{srv.URL + "/before.png", srv.URL + "/huge.png", srv.URL + "/after.png"}

	for _, concurrency := range []int{1, 3} {
		driver := &batch.Driver{
			Fetcher:     fetch.NewPipeline(fetch.WithTimeout(5 * time.Second)),
			Store:       st,
			Concurrency: concurrency,
		}

		var results []fetch.Result
		require.NotPanics(t, func() {
			results = driver.Run(context.Background(), urls)
		})
		require.Len(t, results, 3)

		assert.Equal(t, fetch.Failed, results[1].Outcome)
		assert.Equal(t, fetch.KindConnection, results[1].Kind())
		assert.NoFileExists(t, filepath.Join(st.Dir(), "huge.png"))

		for _, i := range []int{0, 2} {
			assert.Contains(t, []fetch.Outcome{fetch.Saved, fetch.Skipped}, results[i].Outcome, urls[i])
		}
	}
	assert.FileExists(t, filepath.Join(st.Dir(), "before.png"))
	assert.FileExists(t, filepath.Join(st.Dir(), "after.png"))
}

func TestFetch_RequestHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := fetchmocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "imgfetch/1.2.3", req.Header.Get("User-Agent"))
		_, hasDeadline := req.Context().Deadline()
		assert.True(t, hasDeadline)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"image/gif"}},
			Body:       io.NopCloser(strings.NewReader("GIF89a")),
		}, nil
	})

	res := fetch.NewPipeline(fetch.WithClient(doer), fetch.WithUserAgent("imgfetch/1.2.3")).
		Fetch(context.Background(), fetch.Request{URL: "https://example.com/anim.gif"}, newFSStore(t))
	require.NoError(t, res.Err)
	assert.Equal(t, fetch.Saved, res.Outcome)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res := fetch.NewPipeline(fetch.WithTimeout(50*time.Millisecond)).
		Fetch(context.Background(), fetch.Request{URL: srv.URL + "/slow.jpg"}, newFSStore(t))

	assert.Equal(t, fetch.Failed, res.Outcome)
	assert.Equal(t, fetch.KindConnection, res.Kind())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/cat.jpg": {"image/jpeg", "meow"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := fetch.NewPipeline().Fetch(ctx, fetch.Request{URL: srv.URL + "/cat.jpg"}, newFSStore(t))
	assert.Equal(t, fetch.Failed, res.Outcome)
	assert.Equal(t, fetch.KindConnection, res.Kind())
}

func TestFetch_StoreFailures(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/cat.jpg": {"image/jpeg", "meow"},
	})
	storeErr := errors.New("disk on fire")

	tests := []struct {
		name  string
		setup func(m *storemocks.MockStore)
	}{
		{
			name: "exists fails",
			setup: func(m *storemocks.MockStore) {
				m.EXPECT().Exists(gomock.Any(), "cat.jpg").Return(false, storeErr)
			},
		},
		{
			name: "existing file unreadable",
			setup: func(m *storemocks.MockStore) {
				m.EXPECT().Exists(gomock.Any(), "cat.jpg").Return(true, nil)
				m.EXPECT().ContentEquals(gomock.Any(), "cat.jpg", []byte("meow")).Return(false, storeErr)
			},
		},
		{
			name: "write fails",
			setup: func(m *storemocks.MockStore) {
				m.EXPECT().Exists(gomock.Any(), "cat.jpg").Return(false, nil)
				m.EXPECT().Write(gomock.Any(), "cat.jpg", []byte("meow")).Return(nil, storeErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			st := storemocks.NewMockStore(ctrl)
			unlocked := false
			st.EXPECT().Lock("cat.jpg").Return(func() { unlocked = true })
			tt.setup(st)

			res := fetch.NewPipeline().Fetch(context.Background(), fetch.Request{URL: srv.URL + "/cat.jpg"}, st)

			assert.Equal(t, fetch.Failed, res.Outcome)
			assert.Equal(t, fetch.KindIO, res.Kind())
			assert.ErrorIs(t, res.Err, pkgerrors.ErrIO)
			assert.ErrorIs(t, res.Err, storeErr)
			assert.True(t, unlocked, "name lock must be released")
		})
	}
}

func TestFetch_SkippedUsesStoreLocation(t *testing.T) {
	srv := imageServer(t, map[string]struct{ contentType, body string }{
		"/cat.jpg": {"image/jpeg", "meow"},
	})
	ctrl := gomock.NewController(t)
	st := storemocks.NewMockStore(ctrl)
	gomock.InOrder(
		st.EXPECT().Lock("cat.jpg").Return(func() {}),
		st.EXPECT().Exists(gomock.Any(), "cat.jpg").Return(true, nil),
		st.EXPECT().ContentEquals(gomock.Any(), "cat.jpg", []byte("meow")).Return(true, nil),
		st.EXPECT().Location("cat.jpg").Return("s3://images/cat.jpg"),
	)

	res := fetch.NewPipeline().Fetch(context.Background(), fetch.Request{URL: srv.URL + "/cat.jpg"}, st)
	require.NoError(t, res.Err)
	assert.Equal(t, fetch.Skipped, res.Outcome)
	assert.Equal(t, "s3://images/cat.jpg", res.Path)
}

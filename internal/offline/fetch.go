package offline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNetwork marks a fetch that never produced a usable response.
var ErrNetwork = errors.New("network unavailable")

// Fetcher is the "network" behind the worker.
type Fetcher interface {
	Fetch(r *http.Request) (*Entry, error)
}

// HandlerFetcher fetches by running an in-process handler, usually the static
// file server. Gateway errors from the handler count as network failures.
type HandlerFetcher struct {
	Handler http.Handler
}

func (f HandlerFetcher) Fetch(r *http.Request) (*Entry, error) {
	rec := &recorder{header: make(http.Header)}
	f.Handler.ServeHTTP(rec, r)
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	switch rec.status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: status %d", ErrNetwork, rec.status)
	}
	return &Entry{Status: rec.status, Header: rec.header, Body: rec.body.Bytes(), Stored: time.Now()}, nil
}

type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

// OriginFetcher fetches from a remote origin, e.g. a CDN hosting the site.
type OriginFetcher struct {
	Base   *url.URL
	Client *http.Client
}

// NewOriginFetcher parses base and returns a fetcher with a bounded client.
func NewOriginFetcher(base string) (*OriginFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return &OriginFetcher{Base: u, Client: &http.Client{Timeout: 10 * time.Second}}, nil
}

func (f *OriginFetcher) Fetch(r *http.Request) (*Entry, error) {
	target := f.Base.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, h := range []string{"Accept", "Accept-Language", "If-None-Match", "If-Modified-Since"} {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	hdr := resp.Header.Clone()
	hdr.Del("Content-Length")
	return &Entry{Status: resp.StatusCode, Header: hdr, Body: body, Stored: time.Now()}, nil
}

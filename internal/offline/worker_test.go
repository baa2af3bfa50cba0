package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var manifest = []string{"/", "/styles.css", "/app.js"}

type site struct {
	fs   fstest.MapFS
	down atomic.Bool
}

func newSite() *site {
	return &site{fs: fstest.MapFS{
		"index.html":  {Data: []byte("<html>home</html>")},
		"styles.css":  {Data: []byte("body{}")},
		"app.js":      {Data: []byte("console.log(1)")},
		"about.txt":   {Data: []byte("about v1")},
		"notes/a.txt": {Data: []byte("a")},
	}}
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.down.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	http.FileServer(http.FS(s.fs)).ServeHTTP(w, r)
}

func get(t *testing.T, h http.Handler, path string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newWorker(t *testing.T) (*Worker, *site) {
	t.Helper()
	s := newSite()
	w := New("portfolio", manifest, HandlerFetcher{Handler: s})
	require.NoError(t, w.Install(context.Background(), "v1"))
	return w, s
}

func TestInstallActivatesFirstVersion(t *testing.T) {
	w, _ := newWorker(t)
	active, waiting := w.Version()
	assert.Equal(t, "v1", active)
	assert.Empty(t, waiting)
	assert.Equal(t, []string{"portfolio-static-v1"}, w.CacheNames())

	c, ok := w.Storage().Lookup("portfolio-static-v1")
	require.True(t, ok)
	assert.ElementsMatch(t, manifest, c.Keys())
}

func TestNewVersionWaitsUntilSkipWaiting(t *testing.T) {
	w, _ := newWorker(t)
	ctx := context.Background()

	rec := get(t, w, "/about.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, w.CacheNames(), "portfolio-dynamic-v1")

	require.NoError(t, w.Install(ctx, "v2"))
	active, waiting := w.Version()
	assert.Equal(t, "v1", active)
	assert.Equal(t, "v2", waiting)

	reply, err := w.Message(Message{Type: MsgGetVersion})
	require.NoError(t, err)
	assert.Equal(t, "v1", reply.Version)
	assert.Equal(t, "v2", reply.Waiting)
	assert.ElementsMatch(t, []string{"portfolio-static-v1", "portfolio-dynamic-v1", "portfolio-static-v2"}, reply.Caches)

	reply, err = w.Message(Message{Type: MsgSkipWaiting})
	require.NoError(t, err)
	assert.Equal(t, "v2", reply.Version)
	assert.Empty(t, reply.Waiting)
	assert.Equal(t, []string{"portfolio-static-v2"}, reply.Caches)

	_, err = w.Message(Message{Type: "PING"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestManifestAssetsAreCacheFirst(t *testing.T) {
	w, s := newWorker(t)
	s.fs["styles.css"] = &fstest.MapFile{Data: []byte("body{color:red}")}

	rec := get(t, w, "/styles.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get(CacheHeader))
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestOtherRequestsCacheThenNetwork(t *testing.T) {
	w, s := newWorker(t)

	rec := get(t, w, "/about.txt")
	assert.Equal(t, "miss", rec.Header().Get(CacheHeader))
	assert.Equal(t, "about v1", rec.Body.String())

	s.fs["about.txt"] = &fstest.MapFile{Data: []byte("about v2")}
	rec = get(t, w, "/about.txt")
	assert.Equal(t, "hit", rec.Header().Get(CacheHeader))
	assert.Equal(t, "about v1", rec.Body.String())

	rec = get(t, w, "/nope.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = get(t, w, "/nope.txt")
	assert.Equal(t, "miss", rec.Header().Get(CacheHeader), "non-200 responses are not stored")
}

func TestOfflineFallbacks(t *testing.T) {
	w, s := newWorker(t)
	s.down.Store(true)

	rec := get(t, w, "/projects", "Accept", "text/html,application/xhtml+xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get(CacheHeader))
	assert.Equal(t, "<html>home</html>", rec.Body.String())

	rec = get(t, w, "/projects", "Sec-Fetch-Mode", "navigate")
	assert.Equal(t, "fallback", rec.Header().Get(CacheHeader))

	rec = get(t, w, "/data.json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "offline", body["error"])

	rec = get(t, w, "/app.js")
	assert.Equal(t, http.StatusOK, rec.Code, "precached assets survive the outage")
}

func TestBypassedPathsAreNotCached(t *testing.T) {
	w, s := newWorker(t)
	s.fs["api/ping"] = &fstest.MapFile{Data: []byte("pong")}

	rec := get(t, w, "/api/ping")
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get(CacheHeader))
	assert.NotContains(t, w.CacheNames(), "portfolio-dynamic-v1")

	req := httptest.NewRequest(http.MethodPost, "/about.txt", nil)
	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get(CacheHeader))
}

func TestInstallFailureDropsPartialCache(t *testing.T) {
	s := newSite()
	w := New("portfolio", []string{"/", "/missing.css"}, HandlerFetcher{Handler: s})
	err := w.Install(context.Background(), "v1")
	require.Error(t, err)
	active, _ := w.Version()
	assert.Empty(t, active)
	assert.Empty(t, w.CacheNames())

	assert.ErrorIs(t, w.Reload(context.Background()), ErrNoVersion)
}

func TestReloadInstallsDevBuild(t *testing.T) {
	w, _ := newWorker(t)
	ctx := context.Background()

	require.NoError(t, w.Reload(ctx))
	active, _ := w.Version()
	assert.Equal(t, "v1+dev.1", active)
	require.NoError(t, w.Reload(ctx))
	active, _ = w.Version()
	assert.Equal(t, "v1+dev.2", active)
	assert.Equal(t, []string{"portfolio-static-v1+dev.2"}, w.CacheNames())
}

func TestWatchDebouncesChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{}, 10)
	done, err := Watch(ctx, dir, 50*time.Millisecond, func(context.Context) { fired <- struct{}{} })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte{byte('a' + i)}, 0o644))
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	<-done
}

func TestQueryStringsShareOneEntryForLocalSite(t *testing.T) {
	w, _ := newWorker(t)

	for i := range 5000 {
		rec := get(t, w, fmt.Sprintf("/about.txt?v=%d", i))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	c, ok := w.Storage().Lookup(w.DynamicCache("v1"))
	require.True(t, ok)
	assert.Equal(t, []string{"/about.txt"}, c.Keys())
	assert.Equal(t, "hit", get(t, w, "/about.txt?v=x").Header().Get(CacheHeader))
}

func TestOriginDynamicCacheIsBounded(t *testing.T) {
	s := newSite()
	var hits atomic.Int64
	origin := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		s.ServeHTTP(rw, r)
	}))
	defer origin.Close()

	f, err := NewOriginFetcher(origin.URL)
	require.NoError(t, err)
	defer f.Client.CloseIdleConnections()
	w := New("portfolio", manifest, f)
	require.NoError(t, w.Install(context.Background(), "v1"))
	assert.Equal(t, int64(len(manifest)), hits.Load())

	rec := get(t, w, "/styles.css")
	assert.Equal(t, "hit", rec.Header().Get(CacheHeader))
	assert.Equal(t, "body{}", rec.Body.String())

	for i := range 5000 {
		rec := get(t, w, fmt.Sprintf("/about.txt?v=%d", i))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "about v1", rec.Body.String())
	}
	c, ok := w.Storage().Lookup(w.DynamicCache("v1"))
	require.True(t, ok)
	assert.Equal(t, DefaultCacheSize, c.Len())
	assert.Contains(t, c.Keys(), "/about.txt?v=4999")
	assert.NotContains(t, c.Keys(), "/about.txt?v=0")

	static, ok := w.Storage().Lookup(w.StaticCache("v1"))
	require.True(t, ok)
	assert.ElementsMatch(t, manifest, static.Keys())
}

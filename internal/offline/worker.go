// internal/offline/worker.go
//
// Offline cache layer for the static site.
// Lifecycle:
//   - Install(version) precaches the static manifest into "<prefix>-static-<version>".
//     The first version activates at once; later ones wait.
//   - Activate / SkipWaiting promote the waiting version and delete every cache
//     of the prefix that does not belong to it.
//
// Interception (GET only, bypass paths go straight to the network):
//   - Manifest assets: cache-first from the static cache.
//   - Everything else: cached copy from the dynamic cache if present, otherwise
//     the network; 200 responses are stored. The dynamic cache is bounded and
//     keys drop the query when the network is the in-process file server.
//   - Network failure: navigations get the cached root document, other
//     requests a JSON 503 {"error":"offline"}.

package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Message types accepted by Message.
const (
	MsgSkipWaiting = "SKIP_WAITING"
	MsgGetVersion  = "GET_VERSION"
)

// CacheHeader reports how a response was produced: "hit", "miss" or "fallback".
const CacheHeader = "X-Offline-Cache"

var (
	ErrNoVersion      = errors.New("no version installed")
	ErrUnknownMessage = errors.New("unknown message type")
)

// DefaultBypass lists path prefixes the worker never caches.
var DefaultBypass = []string{"/api/", "/metrics", "/sw/", "/health"}

// Message is a control message from a page.
type Message struct {
	Type string `json:"type"`
}

// Reply answers a control message.
type Reply struct {
	Version string   `json:"version"`
	Waiting string   `json:"waiting,omitempty"`
	Caches  []string `json:"caches,omitempty"`
}

// Worker intercepts static-site requests.
type Worker struct {
	prefix   string
	manifest map[string]bool
	assets   []string
	bypass   []string
	storage  *Storage
	network  Fetcher
	// pathOnly drops the query from cache keys.
	pathOnly bool

	mu      sync.Mutex
	active  string
	waiting string
	reloads int
}

// New returns a Worker caching under prefix. manifest lists the precached
// asset paths and must include "/".
func New(prefix string, manifest []string, network Fetcher) *Worker {
	w := &Worker{
		prefix:   prefix,
		manifest: make(map[string]bool, len(manifest)),
		assets:   append([]string(nil), manifest...),
		bypass:   DefaultBypass,
		storage:  NewStorage(),
		network:  network,
	}
	switch network.(type) {
	case HandlerFetcher, *HandlerFetcher:
		w.pathOnly = true
	}
	for _, a := range manifest {
		w.manifest[a] = true
	}
	return w
}

// StaticCache names the precache of version.
func (w *Worker) StaticCache(version string) string { return w.prefix + "-static-" + version }

// DynamicCache names the runtime cache of version.
func (w *Worker) DynamicCache(version string) string { return w.prefix + "-dynamic-" + version }

// Storage exposes the underlying caches.
func (w *Worker) Storage() *Storage { return w.storage }

// Version returns the active and waiting versions.
func (w *Worker) Version() (active, waiting string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active, w.waiting
}

// CacheNames lists this worker's caches.
func (w *Worker) CacheNames() []string { return w.storage.Names(w.prefix + "-") }

// Install precaches every manifest asset for version. Any failing asset
// aborts the install and drops the partial cache.
func (w *Worker) Install(ctx context.Context, version string) error {
	name := w.StaticCache(version)
	c := w.storage.OpenSized(name, len(w.assets))
	for _, asset := range w.assets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			w.storage.Delete(name)
			return err
		}
		e, err := w.network.Fetch(req)
		if err != nil {
			w.storage.Delete(name)
			return fmt.Errorf("install %s: %s: %w", version, asset, err)
		}
		if e.Status != http.StatusOK {
			w.storage.Delete(name)
			return fmt.Errorf("install %s: %s: status %d", version, asset, e.Status)
		}
		c.Put(asset, e)
	}

	w.mu.Lock()
	first := w.active == ""
	if first {
		w.active = version
	} else if version != w.active {
		w.waiting = version
	}
	w.mu.Unlock()

	log.Info().Str("version", version).Int("assets", len(w.assets)).Bool("active", first).Msg("offline: installed")
	if first {
		w.Activate()
	}
	return nil
}

// Activate promotes the waiting version, if any, and removes stale caches.
// It returns the names of the deleted caches.
func (w *Worker) Activate() []string {
	w.mu.Lock()
	if w.waiting != "" {
		w.active = w.waiting
		w.waiting = ""
	}
	active := w.active
	w.mu.Unlock()

	if active == "" {
		return nil
	}
	keep := map[string]bool{w.StaticCache(active): true, w.DynamicCache(active): true}
	var removed []string
	for _, n := range w.CacheNames() {
		if !keep[n] {
			w.storage.Delete(n)
			removed = append(removed, n)
		}
	}
	if len(removed) > 0 {
		log.Info().Str("version", active).Strs("removed", removed).Msg("offline: activated")
	}
	return removed
}

// SkipWaiting activates the waiting version immediately.
func (w *Worker) SkipWaiting() { w.Activate() }

// Reload installs a development rebuild of the active version and activates it.
func (w *Worker) Reload(ctx context.Context) error {
	w.mu.Lock()
	if w.active == "" {
		w.mu.Unlock()
		return ErrNoVersion
	}
	base, _, _ := strings.Cut(w.active, "+dev.")
	w.reloads++
	next := fmt.Sprintf("%s+dev.%d", base, w.reloads)
	w.mu.Unlock()

	if err := w.Install(ctx, next); err != nil {
		return err
	}
	w.SkipWaiting()
	return nil
}

// Message handles a control message.
func (w *Worker) Message(m Message) (Reply, error) {
	switch m.Type {
	case MsgSkipWaiting:
		w.SkipWaiting()
	case MsgGetVersion:
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
	active, waiting := w.Version()
	return Reply{Version: active, Waiting: waiting, Caches: w.CacheNames()}, nil
}

func (w *Worker) bypassed(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return true
	}
	for _, p := range w.bypass {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// ServeHTTP implements the interception strategies.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	active, _ := w.Version()
	if active == "" || w.bypassed(r) {
		e, err := w.network.Fetch(r)
		if err != nil {
			writeOffline(rw)
			return
		}
		writeEntry(rw, e, "")
		return
	}

	key := r.URL.Path
	if r.URL.RawQuery != "" && !w.pathOnly {
		key += "?" + r.URL.RawQuery
	}

	static := w.storage.Open(w.StaticCache(active))
	cache := w.storage.Open(w.DynamicCache(active))
	if w.manifest[key] {
		cache = static
	}
	if e, ok := cache.Get(key); ok {
		writeEntry(rw, e, "hit")
		return
	}

	e, err := w.network.Fetch(r)
	if err != nil {
		log.Debug().Err(err).Str("path", key).Msg("offline: network failed")
		if isNavigation(r) {
			if root, ok := static.Get("/"); ok {
				writeEntry(rw, root, "fallback")
				return
			}
		}
		writeOffline(rw)
		return
	}
	if e.Status == http.StatusOK {
		cache.Put(key, e)
	}
	writeEntry(rw, e, "miss")
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeEntry(rw http.ResponseWriter, e *Entry, how string) {
	h := rw.Header()
	for k, vs := range e.Header {
		h[k] = append([]string(nil), vs...)
	}
	if how != "" {
		h.Set(CacheHeader, how)
	}
	rw.WriteHeader(e.Status)
	_, _ = rw.Write(e.Body)
}

func writeOffline(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.Header().Set(CacheHeader, "offline")
	rw.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(rw).Encode(map[string]string{"error": "offline"})
}

// internal/shell/updater.go
//
// Auto-updater for the packaged desktop build.
// Flow: fetch the JSON release feed, compare its version with the running
// one (semver), download the platform asset into UPDATE_DIR and verify its
// SHA-256. Every step is reported to a Notifier and the last event is kept
// for the UI to poll.

package shell

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/semver"
)

// EventKind names an updater lifecycle step.
type EventKind string

const (
	EventChecking     EventKind = "checking"
	EventAvailable    EventKind = "available"
	EventNotAvailable EventKind = "not_available"
	EventDownloaded   EventKind = "downloaded"
	EventError        EventKind = "error"
)

var (
	ErrBusy       = errors.New("update check already running")
	ErrBadVersion = errors.New("invalid version")
	ErrNoAsset    = errors.New("no release asset for platform")
	ErrChecksum   = errors.New("checksum mismatch")
	ErrNoUpdater  = errors.New("updates are not configured")
)

// Event is one updater notification.
type Event struct {
	Kind    EventKind `json:"kind"`
	Version string    `json:"version,omitempty"`
	Path    string    `json:"path,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives updater events.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Asset is a downloadable build for one platform.
type Asset struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Release is the feed document.
type Release struct {
	Version string           `json:"version"`
	Notes   string           `json:"notes,omitempty"`
	Assets  map[string]Asset `json:"assets"`
}

// Updater checks a release feed for newer builds.
type Updater struct {
	info    Info
	feedURL string
	dir     string
	client  *http.Client
	notify  Notifier
	now     func() time.Time

	mu      sync.Mutex
	running bool
	last    Event
}

// NewUpdater returns an Updater for the running build described by info.
// A nil notifier logs events.
func NewUpdater(info Info, feedURL, dir string, n Notifier) *Updater {
	if n == nil {
		n = NotifierFunc(logEvent)
	}
	return &Updater{
		info:    info,
		feedURL: feedURL,
		dir:     dir,
		client:  &http.Client{Timeout: 60 * time.Second},
		notify:  n,
		now:     time.Now,
	}
}

func logEvent(e Event) {
	ev := log.Info()
	if e.Kind == EventError {
		ev = log.Warn()
	}
	ev.Str("kind", string(e.Kind)).Str("version", e.Version).Str("path", e.Path).Str("error", e.Error).Msg("shell: update")
}

// Last returns the most recent event.
func (u *Updater) Last() Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

func (u *Updater) emit(e Event) Event {
	e.At = u.now().UTC()
	u.mu.Lock()
	u.last = e
	u.mu.Unlock()
	u.notify.Notify(e)
	return e
}

func (u *Updater) fail(err error) (Event, error) {
	return u.emit(Event{Kind: EventError, Error: err.Error()}), err
}

// CheckForUpdates runs one check. The returned event is the final step
// (not_available, downloaded or error).
func (u *Updater) CheckForUpdates(ctx context.Context) (Event, error) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return Event{}, ErrBusy
	}
	u.running = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	u.emit(Event{Kind: EventChecking})

	current := canonical(u.info.Version)
	if !semver.IsValid(current) {
		return u.fail(fmt.Errorf("%w: running %q", ErrBadVersion, u.info.Version))
	}
	rel, err := u.fetchRelease(ctx)
	if err != nil {
		return u.fail(err)
	}
	latest := canonical(rel.Version)
	if !semver.IsValid(latest) {
		return u.fail(fmt.Errorf("%w: feed %q", ErrBadVersion, rel.Version))
	}
	if semver.Compare(latest, current) <= 0 {
		return u.emit(Event{Kind: EventNotAvailable, Version: rel.Version}), nil
	}

	u.emit(Event{Kind: EventAvailable, Version: rel.Version})

	asset, ok := rel.Assets[u.info.Platform]
	if !ok {
		return u.fail(fmt.Errorf("%w: %s", ErrNoAsset, u.info.Platform))
	}
	p, err := u.download(ctx, rel.Version, asset)
	if err != nil {
		return u.fail(err)
	}
	return u.emit(Event{Kind: EventDownloaded, Version: rel.Version, Path: p}), nil
}

func (u *Updater) fetchRelease(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &rel, nil
}

// download streams the asset into dir, hashing as it goes. A file whose
// digest does not match is removed.
func (u *Updater) download(ctx context.Context, version string, a Asset) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", u.dir, err)
	}
	name := path.Base(req.URL.Path)
	if name == "/" || name == "." {
		name = "update"
	}
	dst := filepath.Join(u.dir, version+"-"+name)
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(f, h), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("download: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, a.SHA256) {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: got %s", ErrChecksum, got)
	}
	return dst, nil
}

// Run checks once immediately and then every interval until ctx is done.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := u.CheckForUpdates(ctx); err != nil && !errors.Is(err, ErrBusy) {
			log.Debug().Err(err).Msg("shell: update check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

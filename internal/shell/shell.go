// internal/shell/shell.go
//
// The boundary exposed to pages running inside the desktop shell: a
// read-only platform/version pair plus the two callable operations.

package shell

import (
	"context"
	"runtime"
)

// Info describes the running build.
type Info struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
}

// DefaultPlatform is the build's GOOS.
func DefaultPlatform() string { return runtime.GOOS }

// Bridge is what the page sees.
type Bridge struct {
	info    Info
	updater *Updater
}

// NewBridge returns a Bridge. updater may be nil when no feed is configured.
func NewBridge(info Info, updater *Updater) *Bridge {
	return &Bridge{info: info, updater: updater}
}

// Info returns the platform/version pair.
func (b *Bridge) Info() Info { return b.info }

// GetAppVersion returns the running version.
func (b *Bridge) GetAppVersion() string { return b.info.Version }

// CheckForUpdates triggers a manual check.
func (b *Bridge) CheckForUpdates(ctx context.Context) (Event, error) {
	if b.updater == nil {
		return Event{}, ErrNoUpdater
	}
	return b.updater.CheckForUpdates(ctx)
}

// LastEvent returns the updater's latest event, if any.
func (b *Bridge) LastEvent() (Event, bool) {
	if b.updater == nil {
		return Event{}, false
	}
	e := b.updater.Last()
	return e, e.Kind != ""
}

package offline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch calls onChange once per burst of file changes under dir, after
// debounce of quiet. The returned channel closes when ctx is done and the
// watcher has shut down.
func Watch(ctx context.Context, dir string, debounce time.Duration, onChange func(context.Context)) (<-chan struct{}, error) {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTree(fsw, dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fsw.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				if ev.Has(fsnotify.Create) {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = addTree(fsw, ev.Name)
					}
				}
				log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("offline: change")
				timer.Reset(debounce)

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("offline: watcher")

			case <-timer.C:
				onChange(ctx)
			}
		}
	}()

	log.Info().Str("dir", dir).Dur("debounce", debounce).Msg("offline: watching static dir")
	return done, nil
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

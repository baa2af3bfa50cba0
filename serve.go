// serve.go
//
// Wires the services together and runs the HTTP server until SIGINT/SIGTERM.
// Optional pieces degrade instead of failing startup:
//   - no SQLite database → user and leaderboard routes answer 503
//   - no REDIS_ADDR      → visitor preferences live in memory
//   - no UPDATE_FEED_URL → the shell bridge reports updates as unconfigured
//   - no STATIC_ORIGIN   → the site is served from STATIC_DIR or the embedded build
//   - no TLS_DOMAIN      → plain HTTP on PORT

package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/acme/autocert"

	"github.com/robalobadob/portfolio/apps/go-server/assets"
	"github.com/robalobadob/portfolio/apps/go-server/internal/clock"
	"github.com/robalobadob/portfolio/apps/go-server/internal/config"
	"github.com/robalobadob/portfolio/apps/go-server/internal/httpserver"
	"github.com/robalobadob/portfolio/apps/go-server/internal/identity"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
	"github.com/robalobadob/portfolio/apps/go-server/internal/offline"
	"github.com/robalobadob/portfolio/apps/go-server/internal/scores"
	"github.com/robalobadob/portfolio/apps/go-server/internal/shell"
	"github.com/robalobadob/portfolio/apps/go-server/internal/storage"
	"github.com/robalobadob/portfolio/apps/go-server/internal/store"
	"github.com/robalobadob/portfolio/apps/go-server/internal/users"
)

const (
	sweepInterval   = time.Minute
	watchDebounce   = 300 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg.ApplyLogLevel()

	db := openDB(cfg.DBPath)
	if db != nil {
		defer db.Close()
	}

	prefs, closePrefs := openPrefs(ctx, cfg)
	defer closePrefs()

	var (
		svc *users.Service
		sc  *scores.Store
	)
	if db != nil {
		svc = users.New(users.NewSQLStore(db), prefs, uuid.NewString)
		sc = scores.NewStore(db)
	} else {
		svc = users.New(nil, prefs, uuid.NewString)
	}

	idp := identity.New(cfg.Identity, identity.NewCertSource(identity.GoogleCertsURL))
	if !idp.Enabled() {
		log.Warn().Msg("identity provider disabled")
	}

	worker, err := startWorker(ctx, cfg)
	if err != nil {
		return err
	}

	info := shell.Info{Platform: cfg.Platform, Version: cfg.AppVersion}
	var updater *shell.Updater
	if cfg.UpdateFeedURL != "" {
		updater = shell.NewUpdater(info, cfg.UpdateFeedURL, cfg.UpdateDir, nil)
		go updater.Run(ctx, cfg.UpdateInterval)
	}

	srv := httpserver.New(httpserver.Deps{
		Config:   cfg,
		Prefs:    prefs,
		Users:    svc,
		Scores:   sc,
		Identity: idp,
		Shell:    shell.NewBridge(info, updater),
		Worker:   worker,
		Clock:    clock.Real(),
	})
	go store.RunSweeper(ctx, srv.Store(), sweepInterval, cfg.WorkspaceIdle)

	return listen(ctx, cfg, srv.Handler())
}

// openDB opens and migrates the user database, or returns nil.
func openDB(path string) *sql.DB {
	db, err := storage.OpenAndMigrate(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("database unavailable, continuing without it")
		return nil
	}
	log.Info().Str("path", path).Msg("database ready")
	return db
}

// openPrefs picks the flat cache: Redis when configured and reachable,
// otherwise process memory.
func openPrefs(ctx context.Context, cfg config.Config) (kv.Store, func()) {
	if cfg.RedisAddr == "" {
		return kv.NewMemory(), func() {}
	}
	rdb, err := kv.NewRedis(ctx, kv.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "portfolio:",
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using memory")
		return kv.NewMemory(), func() {}
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ready")
	return rdb, func() { _ = rdb.Close() }
}

// startWorker installs the static site into the offline cache. With
// STATIC_ORIGIN set the site is fetched from that origin; with STATIC_DIR set
// it is read from disk and reinstalled on change.
func startWorker(ctx context.Context, cfg config.Config) (*offline.Worker, error) {
	network, err := siteFetcher(cfg)
	if err != nil {
		return nil, err
	}
	worker := offline.New("portfolio", assets.Manifest, network)
	if err := worker.Install(ctx, cfg.AppVersion); err != nil {
		return nil, err
	}
	if cfg.StaticDir == "" || cfg.StaticOrigin != "" {
		return worker, nil
	}
	if _, err := offline.Watch(ctx, cfg.StaticDir, watchDebounce, func(ctx context.Context) {
		if err := worker.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("reload static site")
		}
	}); err != nil {
		log.Warn().Err(err).Str("dir", cfg.StaticDir).Msg("static dir watch disabled")
	}
	return worker, nil
}

func siteFetcher(cfg config.Config) (offline.Fetcher, error) {
	if cfg.StaticOrigin != "" {
		f, err := offline.NewOriginFetcher(cfg.StaticOrigin)
		if err != nil {
			return nil, fmt.Errorf("STATIC_ORIGIN: %w", err)
		}
		log.Info().Str("origin", cfg.StaticOrigin).Msg("static site served from origin")
		return f, nil
	}
	var site fs.FS = assets.Site()
	if cfg.StaticDir != "" {
		site = os.DirFS(cfg.StaticDir)
	}
	return offline.HandlerFetcher{Handler: http.FileServerFS(site)}, nil
}

// listen serves until ctx is cancelled, then drains in-flight requests.
func listen(ctx context.Context, cfg config.Config, h http.Handler) error {
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var m *autocert.Manager
	if cfg.TLSDomain != "" {
		m = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLSDomain),
			Cache:      autocert.DirCache(cfg.TLSCacheDir),
		}
		hs.Addr = ":443"
		hs.TLSConfig = &tls.Config{GetCertificate: m.GetCertificate, MinVersion: tls.VersionTLS12}
		go func() {
			// HTTP-01 challenges and redirects to HTTPS.
			if err := http.ListenAndServe(":80", m.HTTPHandler(nil)); err != nil {
				log.Error().Err(err).Msg("acme listener exited")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", hs.Addr).Str("version", cfg.AppVersion).Msg("starting portfolio server")
		if m != nil {
			errc <- hs.ListenAndServeTLS("", "")
			return
		}
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

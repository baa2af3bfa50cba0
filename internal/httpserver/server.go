// internal/httpserver/server.go
//
// HTTP server wiring for the portfolio site.
// Responsibilities:
//   - Router + middleware (request ids, panic recovery, access log, metrics,
//     CORS, timeouts, JSON content type).
//   - Per-visitor workspace resolution from the anonymous cookie.
//   - JSON API under /api for the router, theme, games, users, identity and
//     desktop shell; the snake WebSocket; offline-worker control messages.
//   - Everything else falls through to the static site behind the offline
//     worker, gzip-compressed.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The WebSocket route sits outside the timeout group.

package httpserver

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/clock"
	"github.com/robalobadob/portfolio/apps/go-server/internal/config"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/snake"
	"github.com/robalobadob/portfolio/apps/go-server/internal/identity"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
	"github.com/robalobadob/portfolio/apps/go-server/internal/offline"
	"github.com/robalobadob/portfolio/apps/go-server/internal/router"
	"github.com/robalobadob/portfolio/apps/go-server/internal/scores"
	"github.com/robalobadob/portfolio/apps/go-server/internal/shell"
	"github.com/robalobadob/portfolio/apps/go-server/internal/store"
	"github.com/robalobadob/portfolio/apps/go-server/internal/users"
	"github.com/robalobadob/portfolio/apps/go-server/internal/workspace"
)

// Deps are the collaborators the server is built from. Scores and Worker may
// be nil; Prefs defaults to an in-memory flat cache.
type Deps struct {
	Config   config.Config
	Prefs    kv.Store
	Users    *users.Service
	Scores   *scores.Store
	Identity *identity.Client
	Shell    *shell.Bridge
	Worker   *offline.Worker
	Clock    clock.Clock
}

// Server bundles the router and the services behind it.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	prefs    kv.Store
	store    store.Store
	users    *users.Service
	scores   *scores.Store
	idp      *identity.Client
	shell    *shell.Bridge
	worker   *offline.Worker
	clock    clock.Clock
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Prefs == nil {
		d.Prefs = kv.NewMemory()
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	s := &Server{
		r:      chi.NewRouter(),
		cfg:    d.Config,
		prefs:  d.Prefs,
		users:  d.Users,
		scores: d.Scores,
		idp:    d.Identity,
		shell:  d.Shell,
		worker: d.Worker,
		clock:  d.Clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOriginOr(d.Config.ClientOrigin),
		},
	}
	s.store = store.NewMemoryStore(s.newWorkspace, store.WithNow(s.clock.Now), store.OnEvict(s.forgetVisitor))

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(observe)         // access log + request metrics
	s.r.Use(cors(s.cfg.ClientOrigin))

	// --- diagnostics ---
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Handle("/metrics", promhttp.Handler())

	// Snake frames stream without a handler timeout.
	s.r.With(s.withWorkspace).Get("/api/games/snake/ws", s.handleSnakeWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses
		r.Use(s.withOptionalAuth())
		r.Use(s.withWorkspace)

		r.Route("/api", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"service":"portfolio-go","endpoints":["/api/page","/api/games/*","/api/users","/api/session","/api/auth/*","/api/shell/*"]}`))
			})
			s.mountPage(r)
			s.mountGames(r)
			s.mountSnake(r)
			s.mountUsers(r)
			s.mountAuth(r)
			s.mountShell(r)

			// JSON 404 for easier debugging
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
			})
		})
		r.Post("/sw/message", s.handleWorkerMessage)
	})

	s.r.NotFound(s.staticHandler().ServeHTTP)
	return s
}

// staticHandler serves the site through the offline worker.
func (s *Server) staticHandler() http.Handler {
	if s.worker == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
		})
	}
	return gzhttp.GzipHandler(s.worker)
}

// newWorkspace is the store factory: one workspace per visitor, its flat
// cache scoped to the visitor id.
func (s *Server) newWorkspace(ctx context.Context, id string) *workspace.Workspace {
	prefs := kv.Namespaced(s.prefs, "visitor:"+id)
	ws := workspace.New(ctx, id, workspace.Options{
		Clock:      s.clock,
		Prefs:      prefs,
		Rand:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		AppVersion: s.cfg.AppVersion,
		Hooks: workspace.Hooks{
			SectionViewed: func(sec router.Section) { sectionViews.WithLabelValues(string(sec)).Inc() },
			GameFinished:  func(game, outcome string) { gamesFinished.WithLabelValues(game, outcome).Inc() },
			SnakeOver:     func(visitor string, f snake.Frame) { s.recordSnake(visitor, prefs, f) },
		},
	})
	workspacesCreated.Inc()
	log.Debug().Str("visitor", id).Msg("workspace created")
	return ws
}

// forgetVisitor drops per-visitor state kept outside the workspace.
func (s *Server) forgetVisitor(id string) {
	if s.idp != nil {
		s.idp.Forget(id)
	}
}

// Store exposes the workspace registry (the sweeper runs against it).
func (s *Server) Store() store.Store { return s.store }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

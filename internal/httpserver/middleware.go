// internal/httpserver/middleware.go
//
// Middleware shared by every route: JSON content type, credentialed CORS,
// access logging + request metrics, and the per-visitor workspace lookup.

package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/workspace"
)

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin
// (CLIENT_ORIGIN; defaults to http://localhost:5173).
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sameOriginOr accepts WebSocket upgrades from the page's own host or from
// the configured client origin.
func sameOriginOr(origin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		if o == "" || o == origin {
			return true
		}
		u, err := url.Parse(o)
		return err == nil && u.Host == r.Host
	}
}

// observe logs each request and records the request counter/histogram.
// The route pattern is used as the metrics path to keep label cardinality
// bounded.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		path := routePattern(r)
		recordRequest(r.Method, path, status, elapsed)

		ev := log.Debug()
		if status >= 500 {
			ev = log.Warn()
		}
		ev.Str("req_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("dur", elapsed).
			Msg("http")
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "other"
}

// ------------------------------ workspace ----------------------------------

type ctxWorkspaceKey struct{}

// withWorkspace resolves (or creates) the visitor's workspace from the
// anonymous cookie and stores it in the request context.
func (s *Server) withWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.ensureAnonID(w, r)
		ws := s.store.GetOrCreate(r.Context(), id)
		ctx := context.WithValue(r.Context(), ctxWorkspaceKey{}, ws)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// workspaceFrom returns the workspace placed by withWorkspace.
func workspaceFrom(r *http.Request) *workspace.Workspace {
	ws, _ := r.Context().Value(ctxWorkspaceKey{}).(*workspace.Workspace)
	return ws
}

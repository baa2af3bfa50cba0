// internal/httpserver/routes_shell.go
//
// Desktop shell bridge and offline worker control.
//   - GET  /api/shell/info          → {"platform","version"}
//   - GET  /api/shell/version       → {"version"}
//   - POST /api/shell/update-check  → run one update check, return the final event
//   - GET  /api/shell/events        → latest updater event
//   - POST /sw/message              → {"type":"SKIP_WAITING"|"GET_VERSION"}

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/offline"
	"github.com/robalobadob/portfolio/apps/go-server/internal/shell"
)

func (s *Server) mountShell(r chi.Router) {
	r.Route("/shell", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if s.shell == nil {
					http.Error(w, `{"error":"shell_unavailable"}`, http.StatusNotFound)
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(s.shell.Info())
		})
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"version": s.shell.GetAppVersion()})
		})
		r.Post("/update-check", s.handleUpdateCheck)
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			ev, ok := s.shell.LastEvent()
			if !ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"event": nil})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"event": ev})
		})
	})
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	ev, err := s.shell.CheckForUpdates(r.Context())
	switch {
	case errors.Is(err, shell.ErrNoUpdater):
		http.Error(w, `{"error":"updates_not_configured"}`, http.StatusNotFound)
		return
	case errors.Is(err, shell.ErrBusy):
		http.Error(w, `{"error":"update_check_running"}`, http.StatusConflict)
		return
	case err != nil:
		// The failure is also the returned event.
		log.Warn().Err(err).Msg("update check")
	}
	_ = json.NewEncoder(w).Encode(ev)
}

// handleWorkerMessage delivers a control message to the offline worker.
func (s *Server) handleWorkerMessage(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		http.Error(w, `{"error":"worker_unavailable"}`, http.StatusNotFound)
		return
	}
	var msg offline.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	reply, err := s.worker.Message(msg)
	if err != nil {
		http.Error(w, `{"error":"unknown_message"}`, http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(reply)
}

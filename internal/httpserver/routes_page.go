// internal/httpserver/routes_page.go
//
// Page-level routes: section navigation, history and theme.
//   - GET  /api/page               → current page view
//   - POST /api/navigate           → follow an in-app link   {"fragment":"#games"}
//   - POST /api/popstate           → arrival via back/forward {"fragment":"#about"}
//   - POST /api/history/back       → history back
//   - POST /api/history/forward    → history forward
//   - GET  /api/theme              → theme view
//   - POST /api/theme/toggle       → flip and persist the theme
//
// GET /api/page?load=<fragment> applies an initial page load.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type fragmentReq struct {
	Fragment string `json:"fragment"`
}

func (s *Server) mountPage(r chi.Router) {
	r.Get("/page", func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r)
		if q := r.URL.Query(); q.Has("load") {
			_ = json.NewEncoder(w).Encode(ws.Load(q.Get("load")))
			return
		}
		_ = json.NewEncoder(w).Encode(ws.Page())
	})
	r.Post("/navigate", func(w http.ResponseWriter, r *http.Request) {
		var body fragmentReq
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).Navigate(body.Fragment))
	})
	r.Post("/popstate", func(w http.ResponseWriter, r *http.Request) {
		var body fragmentReq
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).PopState(body.Fragment))
	})
	r.Post("/history/back", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).Back())
	})
	r.Post("/history/forward", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).Forward())
	})

	r.Get("/theme", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).Theme())
	})
	r.Post("/theme/toggle", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(workspaceFrom(r).ToggleTheme(r.Context()))
	})
}

// internal/httpserver/routes_users.go
//
// Demo user store routes.
//   - GET    /api/users    → every user, passwords stripped (requires a session)
//   - POST   /api/users    → register {"name","email","password"}
//   - GET    /api/session  → the visitor's current user (flat cache)
//   - POST   /api/session  → log in {"email","password"}; sets the session cookie
//   - DELETE /api/session  → log out
//
// The store is a local demo: passwords are plain text and compared exactly.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/users"
)

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) mountUsers(r chi.Router) {
	r.With(s.requireAuth()).Get("/users", s.handleListUsers)
	r.Post("/users", s.handleCreateUser)
	r.Get("/session", s.handleCurrentUser)
	r.Post("/session", s.handleLogin)
	r.Delete("/session", s.handleLogout)
}

// usersFor binds the user service to the visitor's flat cache.
func (s *Server) usersFor(r *http.Request) *users.Service {
	return s.users.WithCache(workspaceFrom(r).Prefs())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.usersFor(r).ListUsers(r.Context())
	if err != nil {
		http.Error(w, `{"error":"user_database_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.usersFor(r).CreateUser(r.Context(), body.Name, body.Email, body.Password)
	switch {
	case errors.Is(err, users.ErrInvalid):
		http.Error(w, `{"error":"name, email and password are required"}`, http.StatusBadRequest)
		return
	case errors.Is(err, users.ErrEmailExists):
		http.Error(w, `{"error":"Email already exists"}`, http.StatusConflict)
		return
	case err != nil:
		http.Error(w, `{"error":"user_database_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(u)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.usersFor(r).CurrentUser(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("read current user")
		http.Error(w, `{"error":"cache_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"user": u})
}

// handleLogin checks the demo credentials, records the session and sets the
// session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	svc := s.usersFor(r)
	u, err := svc.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		http.Error(w, `{"error":"user_database_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if u == nil {
		http.Error(w, `{"error":"Invalid email or password"}`, http.StatusUnauthorized)
		return
	}
	sess, err := svc.SetCurrentSession(r.Context(), *u)
	if err != nil {
		http.Error(w, `{"error":"session_failed"}`, http.StatusInternalServerError)
		return
	}
	tok, exp, err := s.signJWT(authUser{
		ID:       strconv.FormatInt(u.ID, 10),
		Name:     u.Name,
		Email:    u.Email,
		Provider: providerLocal,
	})
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(map[string]any{"user": u, "session": sess})
}

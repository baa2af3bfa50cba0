// internal/httpserver/auth.go
//
// Session cookie + identity provider routes.
//   - GET  /api/auth/provider  → provider config and OAuth URL (when configured)
//   - POST /api/auth/firebase  → verify an ID token, sign in, set session cookie
//   - GET  /api/auth/state     → current auth state of the visitor
//   - POST /api/auth/logout    → sign out everywhere, clear session cookie
//
// The session cookie is an HS256 JWT carrying the signed-in user; it is
// issued for provider sign-ins and for the demo user store alike.

package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/identity"
	"github.com/robalobadob/portfolio/apps/go-server/internal/users"
)

// Session providers.
const (
	providerFirebase = "firebase"
	providerLocal    = "local"
)

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

// sessionClaims are the claims of the session cookie.
type sessionClaims struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func userFrom(r *http.Request) *authUser {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return me
}

// mountAuth registers /auth routes.
func (s *Server) mountAuth(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/provider", s.handleProvider)
		r.Post("/firebase", s.handleFirebaseSignIn)
		r.Get("/state", s.handleAuthState)
		r.Post("/logout", s.handleLogout)
	})
}

// providerRes describes the identity provider to the page.
type providerRes struct {
	Enabled    bool   `json:"enabled"`
	APIKey     string `json:"apiKey"`
	AuthDomain string `json:"authDomain"`
	ProjectID  string `json:"projectId"`
	AuthURL    string `json:"authUrl,omitempty"`
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	if s.idp == nil {
		_ = json.NewEncoder(w).Encode(providerRes{})
		return
	}
	cfg := s.idp.Config()
	res := providerRes{
		Enabled:    s.idp.Enabled(),
		APIKey:     cfg.APIKey,
		AuthDomain: cfg.AuthDomain,
		ProjectID:  cfg.ProjectID,
	}
	if u, err := s.idp.AuthURL(genID()); err == nil {
		res.AuthURL = u
	}
	_ = json.NewEncoder(w).Encode(res)
}

type firebaseReq struct {
	IDToken string `json:"idToken"`
}

// handleFirebaseSignIn verifies the provider's ID token and turns it into a
// session cookie.
func (s *Server) handleFirebaseSignIn(w http.ResponseWriter, r *http.Request) {
	var body firebaseReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IDToken == "" {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if s.idp == nil || !s.idp.Enabled() {
		http.Error(w, `{"error":"identity_disabled"}`, http.StatusServiceUnavailable)
		return
	}
	ws := workspaceFrom(r)
	id, err := s.idp.SignIn(r.Context(), ws.ID(), body.IDToken)
	switch {
	case errors.Is(err, identity.ErrInvalidToken):
		http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
		return
	case err != nil:
		log.Warn().Err(err).Msg("identity sign-in")
		http.Error(w, `{"error":"identity_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	tok, exp, err := s.signJWT(authUser{ID: id.UID, Name: id.Name, Email: id.Email, Provider: providerFirebase})
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(map[string]any{"user": id})
}

func (s *Server) handleAuthState(w http.ResponseWriter, r *http.Request) {
	var state identity.State
	if s.idp != nil {
		state = s.idp.Current(workspaceFrom(r).ID())
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"signedIn": state.SignedIn() || userFrom(r) != nil,
		"user":     state.User,
		"session":  userFrom(r),
	})
}

// handleLogout signs the visitor out of the provider and the demo store and
// clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r)
	if s.idp != nil {
		s.idp.SignOut(ws.ID())
	}
	if s.users != nil {
		if err := s.users.WithCache(ws.Prefs()).ClearCurrentSession(r.Context()); err != nil {
			log.Warn().Err(err).Msg("clear current session")
		}
	}
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := s.bearerOrCookie(r); tok != "" {
				if u, err := s.parseJWT(tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth rejects requests without a valid session.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userFrom(r) != nil {
				next.ServeHTTP(w, r)
				return
			}
			tokenStr := s.bearerOrCookie(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			u, err := s.parseJWT(tokenStr)
			if err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}

// ------------------------------ JWT & cookies ------------------------------

func (s *Server) jwtSecret() []byte {
	if s.cfg.JWTSecret == "" {
		return []byte("dev_secret_change_me")
	}
	return []byte(s.cfg.JWTSecret)
}

// signJWT creates an HS256 JWT for u with a configurable expiry
// (JWT_EXPIRES_DAYS; default 14).
func (s *Server) signJWT(u authUser) (string, time.Time, error) {
	days := s.cfg.JWTExpiresDays
	if days <= 0 {
		days = 14
	}
	now := s.clock.Now()
	exp := now.Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Name:     u.Name,
		Email:    u.Email,
		Provider: u.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	ss, err := t.SignedString(s.jwtSecret())
	return ss, exp, err
}

func (s *Server) parseJWT(tok string) (*authUser, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("session without subject")
	}
	return &authUser{ID: claims.Subject, Name: claims.Name, Email: claims.Email, Provider: claims.Provider}, nil
}

func (s *Server) cookieName() string {
	if s.cfg.CookieName == "" {
		return "portfolio_token"
	}
	return s.cfg.CookieName
}

func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cookieName()); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------ visitor id ---------------------------------

const anonCookieName = "portfolio_visitor"

// ensureAnonID returns an existing visitor cookie or sets a new one.
// The id keys the visitor's workspace and flat cache.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := genID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  s.clock.Now().Add(180 * 24 * time.Hour),
	})
	// Later middleware in this request sees the new cookie.
	r.AddCookie(&http.Cookie{Name: anonCookieName, Value: id})
	return id
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}

// userLabel names a player on the leaderboard: the demo user's name when one
// is logged in, otherwise a short guest tag.
func userLabel(u *users.User, visitor string) string {
	if u != nil && u.Name != "" {
		return u.Name
	}
	if len(visitor) > 6 {
		visitor = visitor[:6]
	}
	return "guest-" + visitor
}

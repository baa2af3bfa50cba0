// internal/users/users.go
//
// Mock user store for the demo login flow.
//
// Two layers:
//   - Structured: the "UserDatabase" (users + sessions), SQLite in production.
//   - Flat cache: the visitor's key-value store; "current_user" holds the
//     logged-in user as JSON for fast reads.
//
// Passwords are stored and compared as plain text. This is a local demo
// substitute for a real backend and must never hold real credentials.
//
// When the structured layer is missing or failing, session operations keep
// working against the flat cache; user creation is rejected.

package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
)

var (
	ErrEmailExists = errors.New("email already exists")
	ErrInvalid     = errors.New("name, email and password are required")
	ErrUnavailable = errors.New("user database unavailable")
	ErrNotFound    = errors.New("user not found")
)

// User is a user record as returned to callers: it never carries a password.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is the stored form of a user.
type Record struct {
	User
	Password string
}

// Session references the logged-in user.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Structured is the indexed user database.
type Structured interface {
	// InsertUser stores rec and returns its new id; ErrEmailExists on a duplicate email.
	InsertUser(ctx context.Context, rec Record) (int64, error)
	// UserByEmail looks up a normalized email; ErrNotFound if absent.
	UserByEmail(ctx context.Context, email string) (*Record, error)
	ListUsers(ctx context.Context) ([]Record, error)
	// ReplaceSessions deletes every session and stores s.
	ReplaceSessions(ctx context.Context, s Session) error
	ClearSessions(ctx context.Context) error
}

// Service implements the store operations over a structured database and a
// visitor's flat cache.
type Service struct {
	db    Structured
	cache kv.Store
	now   func() time.Time
	newID func() string
}

// New returns a Service. db may be nil when the structured store could not
// be opened; cache is the default flat cache (see WithCache).
func New(db Structured, cache kv.Store, newID func() string) *Service {
	return &Service{db: db, cache: cache, now: time.Now, newID: newID}
}

// WithCache returns a copy of s bound to another visitor's flat cache.
func (s *Service) WithCache(cache kv.Store) *Service {
	c := *s
	c.cache = cache
	return &c
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers a new user. The email is normalized and must be unique.
func (s *Service) CreateUser(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrInvalid
	}
	if s.db == nil {
		return nil, ErrUnavailable
	}

	rec := Record{
		User:     User{Name: name, Email: email, CreatedAt: s.now().UTC()},
		Password: password,
	}
	id, err := s.db.InsertUser(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Str("email", email).Msg("users: create")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	rec.ID = id
	u := rec.User
	return &u, nil
}

// Authenticate checks email/password. It returns (nil, nil) when there is no
// such user or the password does not match exactly.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if s.db == nil {
		log.Warn().Msg("users: authenticate without user database")
		return nil, nil
	}
	rec, err := s.db.UserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("users: authenticate")
		return nil, err
	}
	if rec.Password != password {
		return nil, nil
	}
	u := rec.User
	return &u, nil
}

// ListUsers returns every user without passwords.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	recs, err := s.db.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	out := make([]User, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.User)
	}
	return out, nil
}

// SetCurrentSession makes u the only active session and caches it.
// A failing structured store is logged; the flat cache still records the user.
func (s *Service) SetCurrentSession(ctx context.Context, u User) (*Session, error) {
	sess := Session{ID: s.newID(), UserID: u.ID, CreatedAt: s.now().UTC()}
	if s.db != nil {
		if err := s.db.ReplaceSessions(ctx, sess); err != nil {
			log.Warn().Err(err).Int64("user", u.ID).Msg("users: store session, using flat cache only")
		}
	}

	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, kv.KeyCurrentUser, string(b)); err != nil {
		log.Error().Err(err).Msg("users: cache current user")
		return nil, err
	}
	return &sess, nil
}

// CurrentUser reads the flat cache only. Returns (nil, nil) when logged out.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := s.cache.Get(ctx, kv.KeyCurrentUser)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("users: corrupt current_user, clearing")
		_ = s.cache.Delete(ctx, kv.KeyCurrentUser)
		return nil, nil
	}
	return &u, nil
}

// ClearCurrentSession logs out: the flat cache entry goes first, then the
// structured sessions on a best-effort basis.
func (s *Service) ClearCurrentSession(ctx context.Context) error {
	if err := s.cache.Delete(ctx, kv.KeyCurrentUser); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.ClearSessions(ctx); err != nil {
			log.Warn().Err(err).Msg("users: clear sessions")
		}
	}
	return nil
}

// internal/identity/identity.go
//
// Third-party identity provider wiring.
// Responsibilities:
//   - Static provider config (API key, auth domain, project id), env overridable.
//   - OAuth provider handle (Google endpoint) and its authorization URL.
//   - Verification of provider-issued ID tokens (RS256 against published certs).
//   - Auth-state-changed notifications on sign-in / sign-out.
//
// A client whose config is unusable logs the auth domain and error code once
// and stays disabled; callers keep serving the site unauthenticated.

package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Published site config. Not secret: the browser bundle ships the same values.
const (
	DefaultAPIKey     = "AIzaSyD-portfolio-site-web-key"
	DefaultAuthDomain = "portfolio-site-demo.firebaseapp.com"
	DefaultProjectID  = "portfolio-site-demo"

	issuerPrefix = "https://securetoken.google.com/"
)

// Error codes reported for init failures.
const (
	CodeInvalidAPIKey    = "auth/invalid-api-key"
	CodeMissingProjectID = "auth/missing-project-id"
)

var (
	ErrDisabled     = errors.New("identity provider disabled")
	ErrNoOAuth      = errors.New("oauth provider not configured")
	ErrInvalidToken = errors.New("invalid id token")
	ErrUnknownKey   = errors.New("unknown signing key")
)

// Config is the provider configuration.
type Config struct {
	APIKey     string
	AuthDomain string
	ProjectID  string

	// OAuth client, optional.
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Issuer is the expected "iss" claim of ID tokens for this project.
func (c Config) Issuer() string { return issuerPrefix + c.ProjectID }

// Identity is a verified signed-in user.
type Identity struct {
	UID      string    `json:"uid"`
	Email    string    `json:"email,omitempty"`
	Name     string    `json:"name,omitempty"`
	Picture  string    `json:"picture,omitempty"`
	Verified bool      `json:"emailVerified"`
	Expires  time.Time `json:"expires"`
}

// State is one auth-state-changed notification. User is nil on sign-out.
type State struct {
	Visitor string    `json:"-"`
	User    *Identity `json:"user"`
}

// SignedIn reports whether the state carries a user.
func (s State) SignedIn() bool { return s.User != nil }

// Claims are the ID token claims read by Verify.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// KeySource resolves token signing keys by key id.
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// StaticKeys is a fixed KeySource.
type StaticKeys map[string]*rsa.PublicKey

func (s StaticKeys) Keys(context.Context) (map[string]*rsa.PublicKey, error) { return s, nil }

// Client verifies tokens and fans out auth state.
type Client struct {
	cfg      Config
	keys     KeySource
	oauth    *oauth2.Config
	disabled bool
	now      func() time.Time

	mu      sync.Mutex
	current map[string]*Identity
	subs    map[int]func(State)
	nextSub int
}

// New initialises a client. It never fails: a bad config leaves it disabled.
func New(cfg Config, keys KeySource) *Client {
	c := &Client{
		cfg:     cfg,
		keys:    keys,
		now:     time.Now,
		current: make(map[string]*Identity),
		subs:    make(map[int]func(State)),
	}
	switch {
	case cfg.APIKey == "":
		c.fail(CodeInvalidAPIKey)
	case cfg.ProjectID == "":
		c.fail(CodeMissingProjectID)
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	return c
}

func (c *Client) fail(code string) {
	c.disabled = true
	log.Error().
		Str("domain", c.cfg.AuthDomain).
		Str("code", code).
		Msg("identity: init failed, continuing without sign-in")
}

// Enabled reports whether the client initialised.
func (c *Client) Enabled() bool { return !c.disabled }

// Config returns the provider config.
func (c *Client) Config() Config { return c.cfg }

// Provider returns the OAuth handle, or nil when no OAuth client is configured.
func (c *Client) Provider() *oauth2.Config { return c.oauth }

// AuthURL returns the provider's consent page URL for state.
func (c *Client) AuthURL(state string) (string, error) {
	if c.disabled {
		return "", ErrDisabled
	}
	if c.oauth == nil {
		return "", ErrNoOAuth
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Verify checks an ID token's signature, issuer, audience and expiry.
func (c *Client) Verify(ctx context.Context, raw string) (*Identity, error) {
	if c.disabled {
		return nil, ErrDisabled
	}
	keys, err := c.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: load keys: %w", err)
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		k, ok := keys[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return k, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer()),
		jwt.WithAudience(c.cfg.ProjectID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	id := &Identity{
		UID:      claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Verified: claims.EmailVerified,
	}
	if claims.ExpiresAt != nil {
		id.Expires = claims.ExpiresAt.Time
	}
	return id, nil
}

// SignIn verifies raw and makes it the visitor's current identity.
func (c *Client) SignIn(ctx context.Context, visitor, raw string) (*Identity, error) {
	id, err := c.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.current[visitor] = id
	c.mu.Unlock()
	c.notify(State{Visitor: visitor, User: id})
	return id, nil
}

// SignOut clears the visitor's identity. Subscribers are only told when
// something actually changed.
func (c *Client) SignOut(visitor string) {
	c.mu.Lock()
	_, had := c.current[visitor]
	delete(c.current, visitor)
	c.mu.Unlock()
	if had {
		c.notify(State{Visitor: visitor})
	}
}

// Current returns the visitor's auth state. An identity whose token has
// expired is signed out on read.
func (c *Client) Current(visitor string) State {
	c.mu.Lock()
	id := c.current[visitor]
	expired := id != nil && !id.Expires.IsZero() && !c.now().Before(id.Expires)
	if expired {
		delete(c.current, visitor)
		id = nil
	}
	c.mu.Unlock()
	if expired {
		c.notify(State{Visitor: visitor})
	}
	return State{Visitor: visitor, User: id}
}

// Forget drops the visitor's identity without notifying subscribers. It is
// called when the visitor's workspace is swept.
func (c *Client) Forget(visitor string) {
	c.mu.Lock()
	delete(c.current, visitor)
	c.mu.Unlock()
}

// OnAuthStateChanged registers fn for every sign-in and sign-out and returns
// a function that removes it.
func (c *Client) OnAuthStateChanged(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) notify(s State) {
	c.mu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{APIKey: "key", AuthDomain: "demo.firebaseapp.com", ProjectID: "demo"}
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, mutate func(*Claims)) string {
	t.Helper()
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/demo",
			Audience:  jwt.ClaimStrings{"demo"},
			Subject:   "uid-123",
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Email: "ada@example.com",
		Name:  "Ada",
	}
	if mutate != nil {
		mutate(&c)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newClient(t *testing.T, key *rsa.PrivateKey) *Client {
	c := New(testConfig(), StaticKeys{"k1": &key.PublicKey})
	c.now = func() time.Time { return testNow }
	return c
}

func TestVerify(t *testing.T) {
	key := newKey(t)
	c := newClient(t, key)
	ctx := context.Background()

	id, err := c.Verify(ctx, sign(t, key, "k1", nil))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", id.UID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), id.Expires.Unix())

	cases := map[string]string{
		"wrong audience": sign(t, key, "k1", func(c *Claims) { c.Audience = jwt.ClaimStrings{"other"} }),
		"wrong issuer":   sign(t, key, "k1", func(c *Claims) { c.Issuer = "https://evil.example" }),
		"expired":        sign(t, key, "k1", func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second)) }),
		"no expiry":      sign(t, key, "k1", func(c *Claims) { c.ExpiresAt = nil }),
		"empty subject":  sign(t, key, "k1", func(c *Claims) { c.Subject = "" }),
		"unknown kid":    sign(t, key, "k2", nil),
		"other key":      sign(t, newKey(t), "k1", nil),
		"garbage":        "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Verify(ctx, tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRejectsHMAC(t *testing.T) {
	key := newKey(t)
	c := newClient(t, key)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://securetoken.google.com/demo", "aud": "demo", "sub": "x",
		"exp": testNow.Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = c.Verify(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDisabledClient(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	c := New(cfg, StaticKeys{})
	assert.False(t, c.Enabled())

	_, err := c.Verify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = c.AuthURL("state")
	assert.ErrorIs(t, err, ErrDisabled)

	cfg = testConfig()
	cfg.ProjectID = ""
	assert.False(t, New(cfg, StaticKeys{}).Enabled())
}

func TestAuthURL(t *testing.T) {
	c := New(testConfig(), StaticKeys{})
	assert.Nil(t, c.Provider())
	_, err := c.AuthURL("s")
	assert.ErrorIs(t, err, ErrNoOAuth)

	cfg := testConfig()
	cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL = "cid", "secret", "http://localhost/cb"
	c = New(cfg, StaticKeys{})
	require.NotNil(t, c.Provider())
	u, err := c.AuthURL("xyz")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://accounts.google.com/"), u)
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "client_id=cid")
}

func TestAuthStateNotifications(t *testing.T) {
	key := newKey(t)
	c := newClient(t, key)
	ctx := context.Background()

	var got []State
	unsub := c.OnAuthStateChanged(func(s State) { got = append(got, s) })

	_, err := c.SignIn(ctx, "v1", sign(t, key, "k1", nil))
	require.NoError(t, err)
	assert.True(t, c.Current("v1").SignedIn())
	assert.False(t, c.Current("v2").SignedIn())

	_, err = c.SignIn(ctx, "v1", "bad")
	assert.Error(t, err)

	c.SignOut("v1")
	c.SignOut("v1")

	require.Len(t, got, 2)
	assert.True(t, got[0].SignedIn())
	assert.Equal(t, "v1", got[0].Visitor)
	assert.False(t, got[1].SignedIn())

	unsub()
	_, err = c.SignIn(ctx, "v1", sign(t, key, "k1", nil))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExpiredIdentityIsSignedOut(t *testing.T) {
	key := newKey(t)
	c := newClient(t, key)
	now := testNow
	c.now = func() time.Time { return now }

	var got []State
	c.OnAuthStateChanged(func(s State) { got = append(got, s) })

	_, err := c.SignIn(context.Background(), "v1", sign(t, key, "k1", nil))
	require.NoError(t, err)
	require.True(t, c.Current("v1").SignedIn())

	now = testNow.Add(time.Hour)
	assert.False(t, c.Current("v1").SignedIn(), "token expired")
	require.Len(t, got, 2)
	assert.False(t, got[1].SignedIn())

	assert.False(t, c.Current("v1").SignedIn())
	assert.Len(t, got, 2, "sign-out is reported once")
}

func TestForgetDropsVisitorSilently(t *testing.T) {
	key := newKey(t)
	c := newClient(t, key)

	_, err := c.SignIn(context.Background(), "v1", sign(t, key, "k1", nil))
	require.NoError(t, err)
	_, err = c.SignIn(context.Background(), "v2", sign(t, key, "k1", nil))
	require.NoError(t, err)

	calls := 0
	c.OnAuthStateChanged(func(State) { calls++ })
	c.Forget("v1")
	assert.False(t, c.Current("v1").SignedIn())
	assert.True(t, c.Current("v2").SignedIn())
	assert.Zero(t, calls)

	c.mu.Lock()
	assert.Len(t, c.current, 1)
	c.mu.Unlock()
}

func selfSigned(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    testNow.Add(-time.Hour),
		NotAfter:     testNow.Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestCertSourceCachesForMaxAge(t *testing.T) {
	key := newKey(t)
	cert := selfSigned(t, key)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=60, must-revalidate")
		_ = json.NewEncoder(w).Encode(map[string]string{"k1": cert})
	}))
	defer srv.Close()

	now := testNow
	src := NewCertSource(srv.URL)
	src.now = func() time.Time { return now }
	ctx := context.Background()

	keys, err := src.Keys(ctx)
	require.NoError(t, err)
	require.Contains(t, keys, "k1")
	assert.Equal(t, key.PublicKey.N, keys["k1"].N)

	_, err = src.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(61 * time.Second)
	_, err = src.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	c := New(testConfig(), src)
	c.now = func() time.Time { return testNow }
	id, err := c.Verify(ctx, sign(t, key, "k1", nil))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", id.UID)
}

func TestCertSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewCertSource(srv.URL).Keys(context.Background())
	assert.Error(t, err)
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 22*time.Second, maxAge("public, max-age=22"))
	assert.Equal(t, defaultCertTTL, maxAge(""))
	assert.Equal(t, defaultCertTTL, maxAge("max-age=abc"))
}

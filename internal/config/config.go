// internal/config/config.go
//
// Environment-driven configuration for the portfolio server.
// Values come from the process environment, optionally seeded from a .env
// file in development. Every field has a working local default so
// `portfolio serve` runs with no setup.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/identity"
	"github.com/robalobadob/portfolio/apps/go-server/internal/shell"
)

// Config collects every setting the server reads.
type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StaticDir    string
	StaticOrigin string
	AppVersion   string
	Platform   string

	UpdateFeedURL  string
	UpdateInterval time.Duration
	UpdateDir      string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool

	TLSDomain   string
	TLSCacheDir string

	Identity identity.Config

	WorkspaceIdle time.Duration
}

// Version is the build version, overridden with -ldflags "-X ...config.Version=".
var Version = "0.1.0"

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment without touching .env.
func FromEnv() Config {
	return Config{
		Port:     getEnv("PORT", "5175"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBPath:   getEnv("DB_PATH", "./data/portfolio.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		StaticDir:    os.Getenv("STATIC_DIR"),
		StaticOrigin: os.Getenv("STATIC_ORIGIN"),
		AppVersion:   getEnv("APP_VERSION", Version),
		Platform:     getEnv("APP_PLATFORM", shell.DefaultPlatform()),

		UpdateFeedURL:  os.Getenv("UPDATE_FEED_URL"),
		UpdateInterval: getDuration("UPDATE_INTERVAL", 6*time.Hour),
		UpdateDir:      getEnv("UPDATE_DIR", "./data/updates"),

		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: getInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "portfolio_token"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",

		TLSDomain:   os.Getenv("TLS_DOMAIN"),
		TLSCacheDir: getEnv("TLS_CACHE_DIR", "./data/certs"),

		Identity: identity.Config{
			APIKey:       getEnv("FIREBASE_API_KEY", identity.DefaultAPIKey),
			AuthDomain:   getEnv("FIREBASE_AUTH_DOMAIN", identity.DefaultAuthDomain),
			ProjectID:    getEnv("FIREBASE_PROJECT_ID", identity.DefaultProjectID),
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
		},

		WorkspaceIdle: getDuration("WORKSPACE_IDLE", 30*time.Minute),
	}
}

// ApplyLogLevel sets the global zerolog level from LogLevel.
func (c Config) ApplyLogLevel() {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warn().Str("level", c.LogLevel).Msg("config: unknown LOG_LEVEL, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("config: not an integer, using default")
		return def
	}
	return n
}

// getDuration accepts Go durations ("90s", "6h") or plain seconds.
func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Warn().Str("key", k).Str("value", v).Msg("config: not a duration, using default")
	return def
}

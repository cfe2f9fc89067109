// Package config resolves runtime settings from the environment with
// sane defaults. Flags bound through the CLI override these values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Client configures the CLI side: where the shared document lives and
// who is acting.
type Client struct {
	Workspace string
	ServerURL string
	APIKey    string
	Token     string
	Actor     string
	LogLevel  string
}

// Server configures `st serve`.
type Server struct {
	ListenAddr   string
	BasePath     string
	Workspace    string
	JWTSecret    string
	TokenTTL     time.Duration
	WatchTimeout time.Duration
	LogLevel     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool

	OpenAIKey   string
	OpenAIModel string
}

// ClientFromEnv reads ST_* client settings. These become the CLI flag
// defaults, so precedence is flag, then environment, then default.
func ClientFromEnv() Client {
	return Client{
		Workspace: getenv("ST_WORKSPACE", "."),
		ServerURL: getenv("ST_SERVER_URL", ""),
		APIKey:    getenv("ST_API_KEY", ""),
		Token:     getenv("ST_TOKEN", ""),
		Actor:     getenv("ST_ACTOR", ""),
		LogLevel:  getenv("ST_LOG_LEVEL", "warn"),
	}
}

// ServerFromEnv reads ST_* server settings.
func ServerFromEnv() Server {
	return Server{
		ListenAddr:   getenv("ST_LISTEN_ADDR", ":8484"),
		BasePath:     getenv("ST_BASE_PATH", "/v1"),
		Workspace:    getenv("ST_WORKSPACE", "."),
		JWTSecret:    getenv("ST_JWT_SECRET", ""),
		TokenTTL:     getduration("ST_TOKEN_TTL", 24*time.Hour),
		WatchTimeout: getduration("ST_WATCH_TIMEOUT", 30*time.Second),
		LogLevel:     getenv("ST_LOG_LEVEL", "info"),

		RedisAddr:     getenv("ST_REDIS_ADDR", ""),
		RedisPassword: getenv("ST_REDIS_PASSWORD", ""),
		RedisDB:       getint("ST_REDIS_DB", 0),

		S3Endpoint:  getenv("ST_S3_ENDPOINT", ""),
		S3AccessKey: getenv("ST_S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("ST_S3_SECRET_KEY", ""),
		S3Bucket:    getenv("ST_S3_BUCKET", ""),
		S3Prefix:    getenv("ST_S3_PREFIX", "yedekler"),
		S3UseSSL:    getbool("ST_S3_USE_SSL", true),

		OpenAIKey:   getenv("ST_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		OpenAIModel: getenv("ST_OPENAI_MODEL", ""),
	}
}

// Validate checks the settings `st serve` cannot run without.
func (s Server) Validate() error {
	if s.JWTSecret == "" {
		return fmt.Errorf("ST_JWT_SECRET is required to serve")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

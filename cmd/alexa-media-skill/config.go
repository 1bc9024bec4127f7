package main

import "time"

// Config holds process settings loaded from environment variables
type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	Store          string        `envconfig:"STORE" default:"memory"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	SQLitePath     string        `envconfig:"SQLITE_PATH" default:"alexa-media-skill.db"`
	PublicURL      string        `envconfig:"PUBLIC_URL"`
	JellyfinURL    string        `envconfig:"JELLYFIN_URL" required:"true"`
	CSRFSecret     string        `envconfig:"CSRF_SECRET" required:"true"`
	CSRFTokenBytes int           `envconfig:"CSRF_TOKEN_BYTES" default:"32"`
	CSRFExpiry     time.Duration `envconfig:"CSRF_TOKEN_EXPIRY" default:"10m"`
	LinkExpiry     time.Duration `envconfig:"DEVICE_LINK_EXPIRY" default:"10m"`
	AdminToken     string        `envconfig:"ADMIN_TOKEN"`
	ConfigFile     string        `envconfig:"CONFIG_FILE" default:"alexa-media-skill.toml"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	ItemCacheSize  int           `envconfig:"ITEM_CACHE_SIZE" default:"1024"`
	PollWorkers    int           `envconfig:"POLL_WORKERS" default:"8"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// Store backends
const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

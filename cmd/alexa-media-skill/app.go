package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/alexa-media-skill/internal/authretry"
	"github.com/wrale/alexa-media-skill/internal/config"
	"github.com/wrale/alexa-media-skill/internal/csrf"
	"github.com/wrale/alexa-media-skill/internal/jellyfin"
	"github.com/wrale/alexa-media-skill/internal/linking"
	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/session"
	"github.com/wrale/alexa-media-skill/internal/skill"
	"github.com/wrale/alexa-media-skill/internal/skillsync"
	"github.com/wrale/alexa-media-skill/internal/smapi"
	"github.com/wrale/alexa-media-skill/internal/templates"
	"github.com/wrale/alexa-media-skill/internal/tokenstore"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/worker"
)

// rebuildJob keys the skill rebuild in the worker pool. User ids never
// start with a colon.
const rebuildJob = ":rebuild"

// app wires every component. All stores are built here and injected.
type app struct {
	cfg    Config
	logger *log.Logger

	plugin    *config.Manager
	users     users.Store
	csrfStore tokenstore.Store[struct{}]
	linkStore tokenstore.Store[string]
	sessions  *session.Memory
	csrf      *csrf.Manager
	jellyfin  *jellyfin.Client
	pool      *worker.Pool
	syncer    *skillsync.Syncer
	templates *templates.Templates

	dispatcher *skill.Dispatcher
	accounts   *linking.AccountLinking
	devices    *linking.DeviceLinking
	linkages   *linking.Linkages

	closers []func() error
}

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg Config, logger *log.Logger) (*app, error) {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown log level", "level", cfg.LogLevel)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	var err error
	cfg := a.cfg

	if a.plugin, err = config.Load(cfg.ConfigFile); err != nil {
		return err
	}
	if err := a.openStores(ctx); err != nil {
		return err
	}

	if a.templates, err = templates.LoadTemplates(); err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	a.csrf = csrf.NewManager(a.csrfStore, []byte(cfg.CSRFSecret))
	a.sessions = session.NewMemory()

	if a.jellyfin, err = jellyfin.NewClient(cfg.JellyfinURL, cfg.ItemCacheSize); err != nil {
		return err
	}

	identity := lwa.NewClient()
	appTokens := lwa.NewAppTokenProvider(identity, a.plugin)
	retrier := authretry.New(a.users, identity, a.plugin.ClientCredentials, a.logger.With("component", "authretry"))
	a.syncer = skillsync.New(smapi.NewClient(), a.users, retrier, appTokens, a.plugin,
		a.logger.With("component", "skillsync"), skillsync.WithVersion(Version))

	a.pool = worker.NewPool(cfg.PollWorkers, a.logger.With("component", "worker"))
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.pool.Shutdown(ctx)
	})

	a.plugin.OnServerAddressChange(func(context.Context, config.Plugin) error {
		return a.scheduleRebuild()
	})

	a.accounts = linking.NewAccountLinking(a.csrf, a.jellyfin, a.users,
		func() string { return a.plugin.Get().AccountLinkingClientID },
		skillsync.AccountLinkingPath, a.logger)
	a.devices = linking.NewDeviceLinking(a.linkStore, identity, a.pool, a.users, a.syncer,
		a.plugin.ClientCredentials, a.publicURL, a.logger)
	a.linkages = linking.NewLinkages(a.users, a.devices, a.syncer, a.sessions, a.logger)

	handlers := skill.Handlers(&skill.Deps{
		Library:   a.jellyfin,
		Tracker:   a.jellyfin,
		ServerURL: a.plugin.ServerAddress,
		Logger:    a.logger.With("component", "skill"),
	})
	a.dispatcher = skill.NewDispatcher(handlers, a.users, a.sessions, a.logger.With("component", "dispatcher"))
	return nil
}

func (a *app) openStores(ctx context.Context) error {
	cfg := a.cfg
	csrfOpts := []tokenstore.Option{
		tokenstore.WithTTL(cfg.CSRFExpiry),
		tokenstore.WithTokenBytes(cfg.CSRFTokenBytes),
	}
	linkOpts := []tokenstore.Option{
		tokenstore.WithTTL(cfg.LinkExpiry),
		tokenstore.WithTokenBytes(6),
	}

	switch cfg.Store {
	case storeRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}

		a.users = users.NewRedisStore(client)
		a.csrfStore = tokenstore.NewRedis[struct{}](client, "csrf:", csrfOpts...)
		a.linkStore = tokenstore.NewRedis[string](client, "devicelink:", linkOpts...)

	case storeSQLite:
		db, err := users.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.users = db
		a.csrfStore = tokenstore.NewMemory[struct{}](csrfOpts...)
		a.linkStore = tokenstore.NewMemory[string](linkOpts...)

	case storeMemory:
		a.users = users.NewMemoryStore()
		a.csrfStore = tokenstore.NewMemory[struct{}](csrfOpts...)
		a.linkStore = tokenstore.NewMemory[string](linkOpts...)

	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	a.logger.Info("stores ready", "backend", cfg.Store)
	return nil
}

// publicURL is where users reach this service, defaulting to the server address
func (a *app) publicURL() string {
	if a.cfg.PublicURL != "" {
		return a.cfg.PublicURL
	}
	return a.plugin.ServerAddress()
}

// scheduleRebuild syncs every skill in the background. A rebuild already
// running is replaced.
func (a *app) scheduleRebuild() error {
	return a.pool.Submit(rebuildJob, func(ctx context.Context) {
		if err := a.syncer.SyncAll(ctx); err != nil {
			a.logger.Error("skill rebuild failed", "err", err)
			return
		}
		a.logger.Info("skill rebuild complete")
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("closing", "err", err)
		}
	}
	a.closers = nil
}

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/admin"
	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/health"
	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/link"
	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/voice"
	"github.com/wrale/alexa-media-skill/internal/linking"
	"github.com/wrale/alexa-media-skill/internal/skillsync"
)

const (
	apiPrefix   = "/alexaskill/api"
	adminPrefix = apiPrefix + "/admin"
)

type server struct {
	app    *app
	router *chi.Mux
}

func newServer(a *app) *server {
	s := &server{
		app:    a,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.routes()
	return s
}

func (s *server) routes() {
	a := s.app

	checks := map[string]health.Checker{
		"users":        a.users,
		"csrf":         a.csrf,
		"device_links": a.linkStore,
		"media_server": a.jellyfin,
	}
	s.router.Method(http.MethodGet, "/health", health.New(checks).WithVersion(Version))

	s.router.Method(http.MethodPost, skillsync.RequestPath,
		voice.New(a.dispatcher, a.logger.With("component", "voice")))

	pages := link.New(a.accounts, a.devices, a.templates, a.logger.With("component", "link"))
	s.router.Get(skillsync.AccountLinkingPath, pages.AccountForm)
	s.router.Post(skillsync.AccountLinkingPath, pages.AccountSubmit)
	s.router.Get(linking.DeviceLinkPath, pages.DevicePage)

	if a.cfg.AdminToken == "" {
		a.logger.Warn("ADMIN_TOKEN not set, admin endpoints will reject every request")
	}
	s.router.Mount(adminPrefix, admin.New(a.cfg.AdminToken, a.linkages, a.users, a.plugin,
		a.scheduleRebuild, a.logger.With("component", "admin")).Routes())
}

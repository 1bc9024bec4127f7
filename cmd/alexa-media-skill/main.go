package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// Version is set by the build process
var Version = "dev"

func main() {
	logger := newLogger()

	cmd := &cli.Command{
		Name:    "alexa-media-skill",
		Usage:   "Voice skill backend for a Jellyfin media server",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			syncCommand(),
			purgeUsersCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Fatal("application error", "err", err)
	}
}

// withApp loads configuration, builds the app and runs fn with it
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return withApp(ctx, serve)
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Create or update every skill and exit",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return withApp(ctx, func(ctx context.Context, a *app) error {
				return a.syncer.SyncAll(ctx)
			})
		},
	}
}

func purgeUsersCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge-users",
		Usage: "Delete every linked user",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the deletion",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Bool("yes") {
				return errors.New("refusing to delete users without --yes")
			}
			return withApp(ctx, func(ctx context.Context, a *app) error {
				return a.linkages.Purge(ctx)
			})
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := newServer(a)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "port", a.cfg.Port, "version", Version)
		serverErrors <- httpServer.ListenAndServe()
	}()

	if err := a.scheduleRebuild(); err != nil {
		a.logger.Error("scheduling startup sync", "err", err)
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("starting server: %w", err)

	case <-ctx.Done():
		a.logger.Info("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutting down server", "err", err)
			if err := httpServer.Close(); err != nil {
				a.logger.Error("closing server", "err", err)
			}
		}
		return nil
	}
}

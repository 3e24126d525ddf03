package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/rutting.report/internal/api"
	"github.com/banshee-data/rutting.report/internal/auth"
	"github.com/banshee-data/rutting.report/internal/config"
	"github.com/banshee-data/rutting.report/internal/db"
	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/session"
	"github.com/banshee-data/rutting.report/internal/timeutil"
	"github.com/banshee-data/rutting.report/internal/version"
)

// newDashboard wires the API server and its session store onto database.
func newDashboard(cfg *config.DashboardConfig, database *db.DB, clock timeutil.Clock, bcryptCost int) (*api.Server, *session.Store, error) {
	src, err := database.SampleSource(cfg.GetSamplesTable())
	if err != nil {
		return nil, nil, err
	}
	authenticator, err := auth.NewAuthenticator(database, bcryptCost)
	if err != nil {
		return nil, nil, err
	}
	sessions := session.NewStore(clock, cfg.GetSessionTTL(), session.State{
		Range:  grid.AllRows,
		Params: cfg.DefaultParams(),
	})
	srv := api.NewServer(cfg, grid.NewLoader(src, cfg.GetGridCacheSize()), sessions, authenticator)
	srv.SetHealthCheck(database.PingContext)
	return srv, sessions, nil
}

// serveUntilDone runs server until ctx is done, then shuts it down.
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s", name, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Printf("shutting down %s...", name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("%s shutdown error: %v", name, err)
	}
	return <-errCh
}

func runServe(ctx context.Context, cfg *config.DashboardConfig) error {
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if users, err := database.ListUsers(ctx); err == nil && len(users) == 0 {
		log.Printf("no users yet; add one with: rutting user add <name>")
	}

	srv, sessions, err := newDashboard(cfg, database, timeutil.RealClock{}, auth.DefaultCost)
	if err != nil {
		return err
	}
	log.Printf("%s serving %s", version.Get(), cfg.GetSamplesTable())

	// The admin routes only answer loopback and tailnet clients, so they
	// get their own listener.
	var adminMux *http.ServeMux
	if cfg.GetAdminListen() != "" {
		adminMux = http.NewServeMux()
		if err := database.AttachAdminRoutes(adminMux); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sessions.Run(ctx, cfg.GetSessionSweepInterval())
		return nil
	})

	g.Go(func() error {
		return serveUntilDone(ctx, &http.Server{
			Addr:              cfg.GetListen(),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}, "dashboard")
	})

	if adminMux != nil {
		g.Go(func() error {
			return serveUntilDone(ctx, &http.Server{
				Addr:              cfg.GetAdminListen(),
				Handler:           api.LoggingMiddleware(adminMux),
				ReadHeaderTimeout: 10 * time.Second,
			}, "admin")
		})
	}

	err = g.Wait()
	log.Printf("Graceful shutdown complete")
	return err
}

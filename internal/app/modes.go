package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/winfall/claimkeeper/internal/server"
	"github.com/winfall/claimkeeper/internal/server/handler"
	"github.com/winfall/claimkeeper/internal/server/ws"
)

// ServeMode runs the full stack: the HTTP + WebSocket API, the submission
// update pump, the settlement event listener, and the history archiver.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode", slog.String("account", deps.Account))

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, deps.Account, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Claims: handler.NewClaimHandler(deps.Service, a.logger),
	}
	if deps.History != nil {
		handlers.History = handler.NewHistoryHandler(deps.Service, a.logger)
	}

	srv := server.New(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	a.startBackground(ctx, g, deps)

	return g.Wait()
}

// WatchMode runs headless: the settlement event listener keeps state, caches,
// and history converged without serving an API.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode", slog.String("account", deps.Account))

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	return g.Wait()
}

// startBackground launches the goroutines common to both modes.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error { return deps.Service.PumpSubmissionUpdates(ctx) })

	if deps.Listener != nil {
		g.Go(func() error { return deps.Listener.Run(ctx) })
	}

	if deps.Archiver != nil {
		interval := time.Duration(a.cfg.Archive.IntervalHours) * time.Hour
		g.Go(func() error { return deps.Archiver.RunLoop(ctx, interval) })
	}
}

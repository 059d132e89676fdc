package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/auricex/auricex/internal/feed"
	"github.com/auricex/auricex/internal/server"
	"github.com/auricex/auricex/internal/server/handler"
	"github.com/auricex/auricex/internal/server/ws"
	"github.com/auricex/auricex/internal/service"
	"github.com/auricex/auricex/internal/sweep"
)

// ServerMode starts the price feed, the websocket hub, and the HTTP API.
// Expired trades are still settled lazily at open; the periodic sweep runs in
// sweep or full mode.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	trades, accounts := a.buildServices(deps)
	a.startFeed(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, trades, accounts)

	return g.Wait()
}

// SweepMode runs only the background settlement sweep and the archive loop.
// Useful as a standalone worker next to one or more server instances.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)

	trades, _ := a.buildServices(deps)
	a.startSweeper(ctx, g, deps, trades)

	return g.Wait()
}

// FullMode starts every subsystem: feed, HTTP API, websocket hub, settlement
// sweep, and archive.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	trades, accounts := a.buildServices(deps)
	a.startFeed(ctx, g, deps)
	a.startSweeper(ctx, g, deps, trades)
	a.startHTTPServer(ctx, g, deps, trades, accounts)

	return g.Wait()
}

// buildServices constructs the trade and account services from the wired
// dependencies and the trading configuration.
func (a *App) buildServices(deps *Dependencies) (*service.TradeService, *service.AccountService) {
	params := service.Params{
		MinStake:          decimal.NewFromFloat(a.cfg.Trading.MinStake),
		MaxStake:          decimal.NewFromFloat(a.cfg.Trading.MaxStake),
		DefaultPayoutRate: decimal.NewFromFloat(a.cfg.Trading.DefaultPayoutRate),
		MaxPriceAge:       a.cfg.Trading.MaxPriceAge.Duration,
		TimeFrames:        a.cfg.Trading.TimeFrameDurations(),
		OpenLockTTL:       a.cfg.Trading.OpenLockTTL.Duration,
	}

	trades := service.NewTradeService(
		deps.TradeStore, deps.UserStore, deps.AuditStore,
		deps.PriceCache, deps.LockManager, deps.SignalBus,
		deps.Notifier, params, a.logger,
	)
	accounts := service.NewAccountService(deps.UserStore, deps.AuditStore, deps.SignalBus, a.logger)
	return trades, accounts
}

// startFeed adds the configured price feed goroutine to the group. With a
// websocket URL the exchange stream is used; otherwise REST polling.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Feed.Enabled {
		a.logger.InfoContext(ctx, "price feed disabled")
		return
	}

	if a.cfg.Feed.WsURL != "" {
		wsFeed := feed.NewExchangeWSFeed(a.cfg.Feed.WsURL, a.cfg.Feed.Assets, deps.PriceCache, deps.SignalBus, a.logger)
		g.Go(func() error {
			err := wsFeed.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("exchange ws feed: %w", err)
		})
		return
	}

	poller := feed.NewRestPoller(a.cfg.Feed.RestURL, a.cfg.Feed.Assets, a.cfg.Feed.PollInterval.Duration, deps.PriceCache, a.logger)
	g.Go(func() error {
		err := poller.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("rest price poller: %w", err)
	})
}

// startSweeper adds the settlement sweep (and archive, when wired) to the group.
func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies, trades *service.TradeService) {
	sweeper := sweep.NewSweeper(trades, deps.Archiver, sweep.Config{
		Interval:        a.cfg.Sweep.Interval.Duration,
		BatchSize:       a.cfg.Sweep.BatchSize,
		ArchiveInterval: a.cfg.Sweep.ArchiveInterval.Duration,
		RetentionDays:   a.cfg.Sweep.ArchiveRetentionDays,
	}, a.logger)

	g.Go(func() error {
		return sweeper.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server and the websocket hub goroutines to
// the group. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	trades *service.TradeService,
	accounts *service.AccountService,
) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.PG.Pool(), deps.Redis, a.logger),
		Trades:  handler.NewTradeHandler(trades, a.logger),
		Account: handler.NewAccountHandler(accounts, a.logger),
		Admin:   handler.NewAdminHandler(trades, accounts, a.cfg.Sweep.BatchSize, a.logger),
	}

	srv := server.New(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		AdminAPIKey:     a.cfg.Server.AdminAPIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitBurst.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

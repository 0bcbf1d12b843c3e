// Package app wires all roboto subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the dispatcher and platform loops, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options. When an
// option is not provided, New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/config"
	"github.com/MrWong99/roboto/internal/dispatch"
	"github.com/MrWong99/roboto/internal/health"
	"github.com/MrWong99/roboto/internal/platform/discord"
	"github.com/MrWong99/roboto/internal/platform/twitch"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/resilience"
	"github.com/MrWong99/roboto/internal/room"
	"github.com/MrWong99/roboto/internal/stats"
	"github.com/MrWong99/roboto/internal/store"
	"github.com/MrWong99/roboto/internal/text"
	"github.com/MrWong99/roboto/internal/web"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store      store.Store
	statsAPI   dispatch.StatsAPI
	library    *player.Library
	classifier *command.Classifier
	dispatcher *dispatch.Dispatcher
	registry   *room.Registry
	discord    *discord.Bot
	twitch     *twitch.Bot
	web        *web.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a message store instead of connecting to PostgreSQL.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithStats injects a stats API instead of creating the HTTP client.
func WithStats(s dispatch.StatsAPI) Option {
	return func(a *App) { a.statsAPI = s }
}

// WithLibrary injects a media library instead of scanning the configured path.
func WithLibrary(l *player.Library) Option {
	return func(a *App) { a.library = l }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any collaborator.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initLibrary(); err != nil {
		return nil, fmt.Errorf("app: init library: %w", err)
	}
	a.initStats()

	prefix := cfg.Bot.Prefix
	if prefix == "" {
		prefix = "!"
	}
	a.classifier = command.NewClassifier(prefix)

	a.dispatcher = dispatch.New(dispatch.Config{
		Prefix:        prefix,
		Store:         a.store,
		Stats:         a.statsAPI,
		StatsIdentity: cfg.Stats.DefaultIdentity,
		Library:       a.library,
		Normalizer:    text.NewNormalizer(prefix, cfg.Model.MinLength),
		RebuildEvery:  cfg.Model.RebuildEvery,
	})

	modelOpts := []text.ModelOption{}
	if cfg.Model.Order > 0 {
		modelOpts = append(modelOpts, text.WithOrder(cfg.Model.Order))
	}
	a.registry = room.NewRegistry(a.dispatcher, room.WithModelFactory(func() *text.Model {
		return text.NewModel(modelOpts...)
	}))
	a.dispatcher.BindRooms(a.registry)

	if err := a.initPlatforms(); err != nil {
		return nil, err
	}
	a.initWeb()

	return a, nil
}

// initStore connects to PostgreSQL unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	pg, err := store.New(ctx, a.cfg.Database.PostgresDSN)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initLibrary scans the configured media directory unless a library was
// injected.
func (a *App) initLibrary() error {
	if a.library != nil {
		return nil
	}
	lib, err := player.ScanLibrary(a.cfg.Media.Path)
	if err != nil {
		return err
	}
	a.library = lib
	slog.Info("app: media library scanned", "path", a.cfg.Media.Path, "songs", lib.Len())
	return nil
}

// initStats creates the stats client unless one was injected. The client is
// wrapped in a circuit breaker so a dead stats service cannot stall the
// dispatcher for a full HTTP timeout on every rank command.
func (a *App) initStats() {
	if a.statsAPI != nil {
		return
	}
	a.statsAPI = resilience.GuardStats(stats.NewClient(a.cfg.Stats.BaseURL), resilience.Settings{})
}

// initPlatforms connects the configured chat platforms. Discord connects
// eagerly (the gateway session is needed for voice); Twitch connects lazily
// in Run.
func (a *App) initPlatforms() error {
	if a.cfg.Discord.Token != "" {
		bot, err := discord.New(discord.Config{Token: a.cfg.Discord.Token}, a.classifier, a.dispatcher)
		if err != nil {
			return fmt.Errorf("app: init discord: %w", err)
		}
		a.discord = bot
		a.dispatcher.BindVoice(bot)
		a.closers = append(a.closers, bot.Close)
	}

	if a.cfg.Twitch.Nick != "" {
		a.twitch = twitch.New(twitch.Config{
			Nick:     a.cfg.Twitch.Nick,
			Token:    a.cfg.Twitch.Token,
			Channels: a.cfg.Twitch.Channels,
		}, a.classifier, a.dispatcher)
	}
	return nil
}

// initWeb builds the web server when a listen address is configured.
func (a *App) initWeb() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	checkers := []health.Checker{}
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.PingChecker("database", p))
	}
	if a.discord != nil {
		checkers = append(checkers, health.PingChecker("discord", a.discord))
	}
	if a.twitch != nil {
		checkers = append(checkers, health.PingChecker("twitch", a.twitch))
	}

	a.web = web.New(web.Config{
		ListenAddr: a.cfg.Server.ListenAddr,
		Library:    a.library,
		Rooms:      a.registry,
		Enqueuer:   a.dispatcher,
		Health:     health.New(checkers...),
	})
}

// Dispatcher returns the shared task dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Rooms returns the room registry.
func (a *App) Rooms() *room.Registry { return a.registry }

// Run starts the dispatcher, the Twitch connection, and the web server, and
// blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.dispatcher.Run(ctx) })
	if a.twitch != nil {
		g.Go(func() error { return a.twitch.Run(ctx) })
	}
	if a.web != nil {
		g.Go(func() error { return a.web.Run(ctx) })
	}

	slog.Info("app running",
		"discord", a.discord != nil,
		"twitch", a.twitch != nil,
		"web", a.web != nil,
	)
	return g.Wait()
}

// Shutdown tears subsystems down in order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

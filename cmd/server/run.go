package main

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/guessduel-go/internal/api"
	"github.com/mcoot/guessduel-go/internal/config"
	"github.com/mcoot/guessduel-go/internal/factory"
	redisstorage "github.com/mcoot/guessduel-go/internal/storage/redis"
)

const (
	serviceRooms    = "rooms"
	serviceIdentity = "identity"
	serviceRules    = "rules"
)

// run starts the named services and blocks until ctx is cancelled or one of
// them fails, then shuts every server down
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, services ...string) error {
	var servers []*api.Server
	var closers []func()
	defer func() {
		for _, c := range slices.Backward(closers) {
			c()
		}
	}()

	serverCfg := func(port int) api.ServerConfig {
		sc := api.DefaultServerConfig()
		sc.Host = cfg.Host
		sc.Port = port
		sc.ShutdownTimeout = cfg.ShutdownTimeout
		return sc
	}

	if slices.Contains(services, serviceIdentity) || slices.Contains(services, serviceRules) {
		app, err := newCollaborators(cfg, logger)
		if err != nil {
			return err
		}
		closers = append(closers, func() {
			if err := app.Close(); err != nil {
				logger.Warn("failed to close storage", slog.String("error", err.Error()))
			}
		})

		if slices.Contains(services, serviceIdentity) {
			handler := api.NewIdentityRouter(api.IdentityRouterConfig{
				Logger:          logger.With(slog.String("service", serviceIdentity)),
				IdentityService: app.IdentityService,
			})
			servers = append(servers, api.NewServer(handler, serverCfg(cfg.IdentityPort), logger.With(slog.String("service", serviceIdentity))))
		}
		if slices.Contains(services, serviceRules) {
			handler := api.NewRulesRouter(api.RulesRouterConfig{
				Logger:       logger.With(slog.String("service", serviceRules)),
				RulesService: app.RulesService,
			})
			servers = append(servers, api.NewServer(handler, serverCfg(cfg.RulesPort), logger.With(slog.String("service", serviceRules))))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if slices.Contains(services, serviceRooms) {
		roomsLogger := logger.With(slog.String("service", serviceRooms))
		rooms, err := factory.NewRooms(factory.RoomsConfig{
			Logger: roomsLogger,
			Collab: cfg.Collab,
			Room:   cfg.Room(),
			Router: cfg.Router(),
		})
		if err != nil {
			return err
		}
		closers = append(closers, rooms.Close)

		handler := api.NewRoomsRouter(api.RoomsRouterConfig{
			Logger:    roomsLogger,
			Rooms:     rooms.Rooms,
			Identity:  rooms.Identity,
			WebSocket: rooms.WebSocket,
			Gatherer:  rooms.Gatherer,
		})
		servers = append(servers, api.NewServer(handler, serverCfg(cfg.RoomsPort), roomsLogger))

		g.Go(func() error {
			return rooms.Rooms.Run(gctx)
		})
	}

	for _, srv := range servers {
		g.Go(srv.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(context.WithoutCancel(ctx)))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}

func newCollaborators(cfg *config.Config, logger *slog.Logger) (*factory.App, error) {
	fc := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
	}
	if cfg.StorageType == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.GameTTL = cfg.GameTTL
		fc.RedisConfig = &redisCfg
	}
	return factory.New(fc)
}

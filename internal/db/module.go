package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	Module = fx.Options(
		fx.Provide(
			NewGormClient,
			NewStore,
		),
		fx.Invoke(registerHooks),
	)
)

func registerHooks(lc fx.Lifecycle, store *Store, logger *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing database.")
			return store.Close()
		},
	})
}

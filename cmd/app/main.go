package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/health"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/media"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/transport"
)

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			NewLogger,
			media.New,
			func(m *media.Store) service.Media { return m },
		),
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar()}
		}),
		db.Module,
		service.Module,
		transport.Module,
		health.Module,
		fx.Invoke(func(*transport.HTTPServer) {}),
	).Run()
}

func NewLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.LogMode == config.LogModeDevelopment {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

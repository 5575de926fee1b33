package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/seed"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

func main() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger := l.Sugar()
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), logger); err != nil {
		logger.Fatalw("seed failed", "error", err)
	}
}

func run(ctx context.Context, logger *zap.SugaredLogger) error {
	v := viper.New()
	v.SetEnvPrefix("FOODGRAM")
	v.SetDefault("SEED_FILE", "./data/catalog.toml")
	if err := v.BindEnv("SEED_FILE"); err != nil {
		return err
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	gdb, err := db.NewGormClient(cfg, logger)
	if err != nil {
		return err
	}
	store := db.NewStore(gdb)
	defer func() { _ = store.Close() }()

	catalog, err := service.NewCatalog(store, logger)
	if err != nil {
		return err
	}

	path := v.GetString("SEED_FILE")
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	c, err := seed.Parse(f)
	if err != nil {
		return err
	}
	_, err = seed.Load(ctx, catalog, c, logger)
	return err
}

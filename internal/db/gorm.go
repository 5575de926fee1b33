package db

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
)

func NewGormClient(cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogMode == config.LogModeDevelopment {
		level = logger.Info
	}
	newLogger := logger.New(zap.NewStdLog(l.Desugar()), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		Colorful:                  false,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema. Order matters for foreign keys.
func Migrate(db *gorm.DB) error {
	models := []struct {
		name  string
		model interface{}
	}{
		{"user", &User{}},
		{"measurement unit", &MeasurementUnit{}},
		{"tag", &Tag{}},
		{"ingredient", &Ingredient{}},
		{"recipe", &Recipe{}},
		{"recipe ingredient", &RecipeIngredient{}},
		{"subscribe", &Subscribe{}},
		{"favorite entry", &FavoriteEntry{}},
		{"shopping cart entry", &ShoppingCartEntry{}},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m.model); err != nil {
			return errors.Wrapf(err, "migrate %s", m.name)
		}
	}
	return nil
}

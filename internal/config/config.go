package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	LogModeDevelopment = "development"
	LogModeProduction  = "production"
)

type (
	Config struct {
		Host         string `mapstructure:"HOST"`
		Port         string `mapstructure:"PORT"`
		GRPCPort     string `mapstructure:"GRPC_PORT"`
		DBHost       string `mapstructure:"DB_HOST"`
		DBPort       string `mapstructure:"DB_PORT"`
		DBUser       string `mapstructure:"DB_USER"`
		DBPassword   string `mapstructure:"DB_PASSWORD"`
		DBName       string `mapstructure:"DB_NAME"`
		DBSSLMode    string `mapstructure:"DB_SSL_MODE"`
		PageSize     int    `mapstructure:"PAGE_SIZE"`
		MaxPageSize  int    `mapstructure:"MAX_PAGE_SIZE"`
		RecipesLimit int    `mapstructure:"RECIPES_LIMIT"`
		MaxRecipes   int    `mapstructure:"MAX_RECIPES_LIMIT"`
		MediaDir     string `mapstructure:"MEDIA_DIR"`
		BcryptCost   int    `mapstructure:"BCRYPT_COST"`
		LogMode      string `mapstructure:"LOG_MODE"`
	}
)

var envs = []string{
	"HOST", "PORT", "GRPC_PORT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"PAGE_SIZE", "MAX_PAGE_SIZE", "RECIPES_LIMIT", "MAX_RECIPES_LIMIT", "MEDIA_DIR", "BCRYPT_COST", "LOG_MODE",
}

func NewConfig() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FOODGRAM")

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "1323")
	v.SetDefault("GRPC_PORT", "9000")
	v.SetDefault("DB_HOST", "0.0.0.0")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "db")
	v.SetDefault("DB_SSL_MODE", sslModeDisable)
	v.SetDefault("PAGE_SIZE", 6)
	v.SetDefault("MAX_PAGE_SIZE", 100)
	v.SetDefault("RECIPES_LIMIT", 10)
	v.SetDefault("MAX_RECIPES_LIMIT", 100)
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("BCRYPT_COST", 14)
	v.SetDefault("LOG_MODE", LogModeProduction)

	for _, key := range envs {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func validate(cfg *Config) error {
	if cfg.DBSSLMode != sslModeDisable && cfg.DBSSLMode != sslModeRequire {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}
	if cfg.PageSize < 1 {
		return errors.New(fmt.Sprintf("page size must be positive: %d", cfg.PageSize))
	}
	if cfg.MaxPageSize < cfg.PageSize {
		return errors.New(fmt.Sprintf("max page size %d is below page size %d", cfg.MaxPageSize, cfg.PageSize))
	}
	if cfg.RecipesLimit < 0 {
		return errors.New(fmt.Sprintf("recipes limit must not be negative: %d", cfg.RecipesLimit))
	}
	if cfg.MaxRecipes < cfg.RecipesLimit {
		return errors.New(fmt.Sprintf("max recipes limit %d is below recipes limit %d", cfg.MaxRecipes, cfg.RecipesLimit))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return errors.New(fmt.Sprintf("bcrypt cost is out of range: %d", cfg.BcryptCost))
	}
	if cfg.LogMode != LogModeDevelopment && cfg.LogMode != LogModeProduction {
		return errors.New(fmt.Sprintf("log mode is invalid: %s", cfg.LogMode))
	}
	return nil
}

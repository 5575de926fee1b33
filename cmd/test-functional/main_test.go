//go:build functional

package test_functional

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Host       string `mapstructure:"HOST"`
		Port       string `mapstructure:"PORT"`
		DBHost     string `mapstructure:"DB_HOST"`
		DBPort     string `mapstructure:"DB_PORT"`
		DBUser     string `mapstructure:"DB_USER"`
		DBPassword string `mapstructure:"DB_PASSWORD"`
		DBName     string `mapstructure:"DB_NAME"`
	}
)

var (
	AppBaseURL url.URL
	DBConn     *pgx.Conn
)

func TestMain(m *testing.M) {
	viper.SetEnvPrefix("TEST_RUNNER")

	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "1323")
	viper.SetDefault("DB_HOST", "0.0.0.0")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "db")

	envs := []string{"HOST", "PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"}
	for _, key := range envs {
		if err := viper.BindEnv(key); err != nil {
			panic(err)
		}
	}

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	////////

	AppBaseURL = url.URL{
		Scheme: "http",
		Host:   cfg.Host + ":" + cfg.Port,
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)

	cl := resty.New()
	pingURL := AppBaseURL
	pingURL.Path = "/ping"
	pingURLStr := pingURL.String()
	for {
		if pingCtx.Err() != nil {
			panic(pingCtx.Err())
		}
		resp, err := cl.R().SetContext(pingCtx).Get(pingURLStr)
		if err == nil && resp.String() == "pong" {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	cancel()

	fmt.Println("pinged successfully")

	///////

	dbCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	conn, err := pgx.Connect(dbCtx, fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName))
	cancel()
	if err != nil {
		panic(err)
	}
	DBConn = conn

	code := m.Run()
	_ = conn.Close(context.Background())
	os.Exit(code)
}

// FlushDB empties every table the API writes to.
func FlushDB() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_, err := DBConn.Exec(ctx, `TRUNCATE
		favorite_entries, shopping_cart_entries, subscribes, recipe_tags, recipe_ingredients,
		recipes, ingredients, measurement_units, tags, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		panic(err)
	}
}

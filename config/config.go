/*
config.go - Server configuration

PURPOSE:
  Collects the settings of cmd/server from three layers, lowest first:
  defaults, environment (optionally seeded from a .env file) and
  command-line flags. A flag that is set wins over the environment.

ENVIRONMENT:
  SHOP_ADDR          Listen address (default: :8080)
  SHOP_DB_PATH       SQLite database path (default: shop.db)
  SHOP_USE_KARMA     Karma pricing on purchases (default: false)
  SHOP_CORS_ORIGINS  Comma separated allowed origins

FLAGS:
  -addr, -db, -karma, -cors mirror the variables above.
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string   `env:"SHOP_ADDR" envDefault:":8080"`
	DBPath      string   `env:"SHOP_DB_PATH" envDefault:"shop.db"`
	UseKarma    bool     `env:"SHOP_USE_KARMA" envDefault:"false"`
	CORSOrigins []string `env:"SHOP_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load reads .env files (missing files are fine), the environment and
// then args.
func Load(args []string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
		log.Println("[Config] no .env file, using environment")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	fset := flag.NewFlagSet("server", flag.ContinueOnError)
	addr := fset.String("addr", "", "HTTP listen address, for example :8080")
	dbPath := fset.String("db", "", `SQLite database path, ":memory:" for an in-memory database`)
	karma := fset.Bool("karma", cfg.UseKarma, "Enable karma pricing on purchases")
	origins := fset.String("cors", "", "Comma separated list of allowed CORS origins")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	cfg.UseKarma = *karma
	if *origins != "" {
		cfg.CORSOrigins = strings.Split(*origins, ",")
	}

	return &cfg, nil
}

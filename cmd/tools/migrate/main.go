package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/foodtruck-orders/internal/config"
	"github.com/noah-isme/foodtruck-orders/internal/db"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "migrate").Logger()

	if !*down {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
		return
	}

	m, err := db.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrator")
	}
	defer m.Close()
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("roll back migrations")
	}
	logger.Info().Msg("migrations rolled back")
}

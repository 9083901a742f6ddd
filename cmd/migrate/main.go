// migrate applies the embedded schema: go run ./cmd/migrate -direction up.
package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"authguard/internal/config"
	"authguard/internal/db/migrate"
	"authguard/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	version := flag.Bool("version", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Timestamp: true})

	if *version {
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("migrate version")
		}
		log.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
		return
	}

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
		log.Fatal().Err(err).Str("direction", string(dir)).Msg("migrate")
	}
}

// Command migrate applies or rolls back the embedded database migrations.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/jrsteele09/go-embed-auth/internal/config"
	"github.com/jrsteele09/go-embed-auth/internal/db/migrate"
	"github.com/jrsteele09/go-embed-auth/internal/logging"
)

func main() {
	envFile := pflag.String("env-file", ".env", "path to an optional .env file")
	direction := pflag.StringP("direction", "d", migrate.DirectionUp, "migration direction: up or down")
	databaseURL := pflag.String("database-url", "", "database URL; defaults to DATABASE_URL")
	pflag.Parse()

	dsn := *databaseURL
	level, env := "info", "DEV"
	if c, err := config.LoadFile(*envFile); err == nil {
		level, env = c.GetLogLevel(), c.GetEnv()
		if dsn == "" {
			dsn = c.GetDatabaseURL()
		}
	} else if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	logging.Init(level, env)

	if err := migrate.Run(dsn, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}
	log.Info().Str("direction", *direction).Msg("migrations complete")
}

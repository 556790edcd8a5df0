package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/jrsteele09/go-embed-auth/frame"
	"github.com/jrsteele09/go-embed-auth/internal/config"
	"github.com/jrsteele09/go-embed-auth/internal/db"
	"github.com/jrsteele09/go-embed-auth/internal/db/migrate"
	"github.com/jrsteele09/go-embed-auth/internal/logging"
	sessionpg "github.com/jrsteele09/go-embed-auth/paramsession/pgrepo"
	"github.com/jrsteele09/go-embed-auth/paramsession/redisrepo"
	fakesessionrepo "github.com/jrsteele09/go-embed-auth/paramsession/repofake"
	"github.com/jrsteele09/go-embed-auth/server"
	"github.com/jrsteele09/go-embed-auth/server/authflowrepo"
	userpg "github.com/jrsteele09/go-embed-auth/users/pgrepo"
	fakeuserrepo "github.com/jrsteele09/go-embed-auth/users/repofake"
)

type options struct {
	envFile string
	migrate bool
}

func main() {
	var opts options
	pflag.StringVar(&opts.envFile, "env-file", ".env", "path to an optional .env file")
	pflag.BoolVar(&opts.migrate, "migrate", false, "apply database migrations before serving (postgres store only)")
	pflag.Parse()

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(opts options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.LoadFile(opts.envFile)
	if err != nil {
		return err
	}
	logger := logging.Init(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	repos, closeRepos, err := openRepos(ctx, c, opts, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeRepos()

	handler, err := server.New(c, repos, authflowrepo.NewInMemoryRepo(), server.WithLogger(logger))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// openRepos builds the stores for the configured backend. Redis holds only
// session records; users and the allow-list stay in process.
func openRepos(ctx context.Context, c config.Config, opts options, logger zerolog.Logger) (server.Repos, func(), error) {
	switch c.GetSessionStore() {
	case config.StorePostgres:
		if opts.migrate {
			if err := migrate.Run(c.GetDatabaseURL(), migrate.DirectionUp); err != nil {
				return server.Repos{}, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("database migrations applied")
		}
		pool, err := db.Open(ctx, c.GetDatabaseURL())
		if err != nil {
			return server.Repos{}, nil, err
		}
		logger.Info().Msg("using postgres stores")
		return server.Repos{
			Sessions: sessionpg.NewPostgresRepository(pool),
			Users:    userpg.NewPostgresRepository(pool),
			Frame:    frame.NewPostgresStore(pool),
		}, pool.Close, nil

	case config.StoreRedis:
		client, err := redisrepo.Connect(ctx, c.GetRedisURL())
		if err != nil {
			return server.Repos{}, nil, err
		}
		logger.Info().Msg("using redis session store")
		return server.Repos{
			Sessions: redisrepo.NewRedisRepository(client),
			Users:    fakeuserrepo.NewFakeUserRepo(),
			Frame:    frame.NewMemoryStore(""),
		}, func() { _ = client.Close() }, nil

	default:
		logger.Warn().Msg("using in-memory stores; sessions and users are lost on restart")
		return server.Repos{
			Sessions: fakesessionrepo.NewFakeSessionRepo(),
			Users:    fakeuserrepo.NewFakeUserRepo(),
			Frame:    frame.NewMemoryStore(""),
		}, func() {}, nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

/*
main.go - Application entry point

PURPOSE:
  Starts the benefit entitlement engine server: parse configuration from
  the environment, open the SQLite store, wire the handler and router,
  serve with graceful shutdown.

CONFIGURATION (environment):
  PORT                  HTTP port (default 8080)
  DB_PATH               SQLite database path (default benefit.db,
                        ":memory:" for a throwaway instance)
  LOG_PRETTY            Console-formatted logs instead of JSON
  DEFAULT_ANNUAL_LIMIT  Fallback annual allowance when no policy is set

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain in-flight requests
  (up to 30s), close the store.

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinix/benefit-engine/api"
	"github.com/clinix/benefit-engine/entitlement"
	"github.com/clinix/benefit-engine/store/sqlite"
)

type config struct {
	Port               int    `env:"PORT" envDefault:"8080"`
	DBPath             string `env:"DB_PATH" envDefault:"benefit.db"`
	LogPretty          bool   `env:"LOG_PRETTY" envDefault:"false"`
	DefaultAnnualLimit string `env:"DEFAULT_ANNUAL_LIMIT"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	if cfg.DefaultAnnualLimit != "" {
		limit, err := decimal.NewFromString(cfg.DefaultAnnualLimit)
		if err != nil {
			logger.Fatal().Err(err).Str("value", cfg.DefaultAnnualLimit).Msg("DEFAULT_ANNUAL_LIMIT is not a decimal")
		}
		entitlement.DefaultAnnualLimit = limit
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsim/papertrade-backend/internal/adapter/httpapi"
	"github.com/finsim/papertrade-backend/internal/adapter/repository/memory"
	"github.com/finsim/papertrade-backend/internal/adapter/repository/postgres"
	"github.com/finsim/papertrade-backend/internal/config"
	"github.com/finsim/papertrade-backend/internal/domain"
	"github.com/finsim/papertrade-backend/internal/usecase/trading"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	// Repositories: postgres in production, in-memory in dev mode.
	var (
		portfolioRepo   domain.PortfolioRepository
		positionRepo    domain.PositionRepository
		transactionRepo domain.TransactionRepository
		uow             domain.UnitOfWork
	)
	if cfg.DevMode {
		log.Warn().Msg("dev mode: using in-memory store, state is not persisted")
		store := memory.NewStore()
		portfolioRepo = memory.NewPortfolioRepository(store)
		positionRepo = memory.NewPositionRepository(store)
		transactionRepo = memory.NewTransactionRepository(store)
		uow = memory.NewUnitOfWork(store)
	} else {
		db, err := postgres.NewDB(cfg.DBConnStr)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		portfolioRepo = postgres.NewPortfolioRepository(db)
		positionRepo = postgres.NewPositionRepository(db)
		transactionRepo = postgres.NewTransactionRepository(db)
		uow = postgres.NewUnitOfWork(db)
	}

	tradingService := trading.NewService(
		portfolioRepo, positionRepo, transactionRepo, uow,
		cfg.InitialBalance, log,
	)

	server := httpapi.New(httpapi.Config{
		Port:     cfg.Port,
		Log:      log,
		Trading:  tradingService,
		Resolver: httpapi.NewJWTResolver(cfg.JWTSecret),
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	waitForShutdown(server, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *httpapi.Server, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}

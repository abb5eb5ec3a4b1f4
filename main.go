package main

import (
	"context"
	"database/sql"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/dmtrade/backend/src/config"
	"github.com/username/dmtrade/backend/src/database"
	"github.com/username/dmtrade/backend/src/handlers"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/repository"
	"github.com/username/dmtrade/backend/src/scheduler"
	"github.com/username/dmtrade/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("dmtrade backend server starting...")

	var store repository.Store
	var db *sql.DB
	if config.Cfg.StorageDriver == config.StorageMemory {
		logger.L.Warn("Using in-memory storage; data is lost on restart")
		store = repository.NewMemoryStore()
	} else {
		logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
		database.InitDB(config.Cfg.DatabasePath)
		db = database.DB
		defer db.Close()
		store = repository.NewSQLiteStore(db)
	}

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	priceService := services.NewPriceService(services.PriceServiceConfig{
		BaseURL:          config.Cfg.QuoteBaseURL,
		Timeout:          config.Cfg.QuoteTimeout,
		CacheExpiration:  config.Cfg.QuoteCacheExpiration,
		HistoryRange:     config.Cfg.HistoryRange,
		FetchConcurrency: config.Cfg.QuoteFetchConcurrency,
	}, db)
	portfolioService := services.NewPortfolioService(store, priceService, reportCache, services.PortfolioServiceConfig{
		MaxPortfoliosPerAccount: config.Cfg.MaxPortfoliosPerAccount,
		HistoryIntervalDays:     config.Cfg.HistoryIntervalDays,
		FetchConcurrency:        config.Cfg.QuoteFetchConcurrency,
	})
	accountService := services.NewAccountService(store, portfolioService)

	sched := scheduler.New(logger.L)
	refreshJob := scheduler.NewPriceRefreshJob(store, priceService, 2*time.Minute, logger.L)
	if err := sched.AddJob(config.Cfg.QuoteRefreshSchedule, refreshJob); err != nil {
		logger.L.Error("Invalid QUOTE_REFRESH_SCHEDULE, price refresh disabled", "schedule", config.Cfg.QuoteRefreshSchedule, "error", err)
	}
	sched.Start()

	router := handlers.NewRouter(
		handlers.RouterConfig{
			AllowedOrigins: config.Cfg.AllowedOrigins,
			Limiter:        rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst),
		},
		handlers.NewAccountHandler(accountService),
		handlers.NewPortfolioManagerHandler(portfolioService),
		handlers.NewTransactionHandler(portfolioService),
		handlers.NewPortfolioHandler(portfolioService, priceService),
	)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server forced to shutdown", "error", err)
	}
	sched.Stop()
	logger.L.Info("Server stopped")
}

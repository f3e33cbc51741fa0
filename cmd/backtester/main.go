package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"backtester/internal/analysis"
	"backtester/internal/api"
	"backtester/internal/config"
	"backtester/internal/database"
	"backtester/internal/exchange"
	"backtester/internal/logger"
	"backtester/internal/marketdata"
	"backtester/internal/metrics"
	"backtester/internal/model"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("cannot load .env: %v", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	appLogger := logger.New(cfg.Log)
	slog.SetDefault(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rest := exchange.NewBinanceRESTClient(cfg.Binance, appLogger, m)

	var provider exchange.MarketDataProvider = rest
	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("cannot connect to database: %v", err)
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("cannot migrate database: %v", err)
		}
		provider = marketdata.NewCachedProvider(rest, repo, appLogger, m)
		appLogger.Info("Candle cache enabled", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	}

	var wg sync.WaitGroup
	var board analysis.TickerBoard
	if cfg.Binance.StreamEnabled {
		stream, err := exchange.NewStreamClient("binance", appLogger, cfg.Binance)
		if err != nil {
			log.Fatalf("cannot create stream client: %v", err)
		}
		b := marketdata.NewBoard(appLogger.With("component", "board"), m)
		board = b

		tickChan := make(chan model.PriceTick, 1024)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := stream.StartStream(ctx, tickChan); err != nil {
				appLogger.Error("Ticker stream stopped", "exchange", stream.GetName(), "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			b.Run(ctx, tickChan)
		}()
	}

	svc := analysis.NewService(provider, rest, board, cfg.Strategy, appLogger, m)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(svc, cfg.Server, appLogger, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("Starting HTTP server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	wg.Wait()
	appLogger.Info("Stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"

	"wallet_orchestrator/internal/app/service"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/infrastructure/eventstream"
	"wallet_orchestrator/internal/infrastructure/gateway"
	"wallet_orchestrator/internal/infrastructure/pricefeed"
	"wallet_orchestrator/internal/infrastructure/registry"
	"wallet_orchestrator/internal/infrastructure/restapi"
	"wallet_orchestrator/internal/pkg/logger"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	logger.SetHandler(slogzap.Option{Level: slog.LevelInfo, Logger: zapLogger}.NewZapHandler())
	appLogger := logger.NewSlogAdapter()

	cfgPath := getEnv("CONFIG_PATH", "config/config.yml")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "path", cfgPath, "error", err)
	}
	logger.SetHandler(slogzap.Option{Level: parseLevel(cfg.Logging.Level), Logger: zapLogger}.NewZapHandler())

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	networks := registry.NewNetworkRegistry(cfg.Networks, appLogger)
	tokens, err := registry.NewTokenRegistry(cfg.TokensDir, appLogger)
	if err != nil {
		logger.Fatal("Failed to load token catalogs", "dir", cfg.TokensDir, "error", err)
	}

	gw, err := gateway.NewEVMGateway(cfg.Gateway, appLogger)
	if err != nil {
		logger.Fatal("Failed to connect wallet provider gateway", "error", err)
	}
	go gw.StartEventLoop(rootCtx)

	hub := eventstream.NewHub(appLogger)
	go hub.Start(rootCtx)

	aggregator := service.NewBalanceAggregator(gw, networks, tokens, appLogger, cfg.Balances)
	sessions := service.NewSessionManager(gw, networks, aggregator, hub, appLogger)
	sessions.Start(rootCtx)
	defer sessions.Stop()

	orchestrator := service.NewTransferOrchestrator(rootCtx, sessions, tokens, networks, gw, hub, appLogger, cfg.Transfers)

	priceClient := pricefeed.NewClient(
		cfg.PriceFeed.BaseURL,
		time.Duration(cfg.PriceFeed.RequestTimeoutMillis)*time.Millisecond,
		zapLogger,
		cfg.PriceFeed.MaxSymbolsPerRequest,
	)
	prices := service.NewPriceService(priceClient, appLogger, cfg.PriceFeed)

	// Restore a previously authorized session without prompting.
	go sessions.AutoReconnect(rootCtx)

	handler := restapi.NewHandler(sessions, orchestrator, aggregator, networks, tokens, prices, appLogger)
	router := restapi.SetupRouter(handler, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exiting")
}

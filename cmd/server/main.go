package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cardledger/docs"
	"cardledger/internal/auth"
	"cardledger/internal/cache"
	"cardledger/internal/config"
	"cardledger/internal/handler"
	"cardledger/internal/logging"
	"cardledger/internal/repository"
	"cardledger/internal/router"
	"cardledger/internal/service"
)

// @title Card Ledger API
// @version 1.0
// @description Owner scoped cards with an append-only operation history and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Amounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ResetDB {
		logger.Warn("RESET_DB=true detected, dropping all tables")
	}
	stores, err := repository.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(stores.Users, jwtService, tokenStore)
	cardService := service.NewCardService(stores.Cards, cacheClient, cfg.ListCacheTTL, logger)
	postingService := service.NewPostingService(stores.Cards, stores.PostingLogs, cacheClient, cfg.ListCacheTTL, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, cfg, logger, jwtService, tokenStore, router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Cards:        handler.NewCardHandler(cardService),
		Transactions: handler.NewTransactionHandler(postingService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	logger.Info("swagger documentation available", zap.String("url", swaggerURL(cfg)))

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var startErr error
	select {
	case startErr = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	postingService.Close()
	if err := cacheClient.Close(); err != nil {
		logger.Warn("redis close", zap.Error(err))
	}
	if err := stores.Close(shutdownCtx); err != nil {
		logger.Warn("store close", zap.Error(err))
	}
	if startErr != nil {
		return fmt.Errorf("start http server: %w", startErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// swaggerURL builds the browsable docs address. SWAGGER_HOST may carry its own scheme.
func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}

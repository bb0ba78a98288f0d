package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signalboard/internal/client/alphavantage"
	"signalboard/internal/client/binance"
	"signalboard/internal/client/reasoning"
	"signalboard/internal/config"
	cronrunner "signalboard/internal/cron"
	"signalboard/internal/db"
	"signalboard/internal/engine"
	"signalboard/internal/handler"
	"signalboard/internal/logger"
	"signalboard/internal/market"
	"signalboard/internal/middleware"
	"signalboard/internal/repository"
	gormrepository "signalboard/internal/repository/gorm"
	memoryrepository "signalboard/internal/repository/memory"
	"signalboard/internal/scanner"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("SB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store repository.Repository
	var dbConn *db.DB
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory store")
		store = memoryrepository.New()
	} else {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	}

	avHTTP := &http.Client{Timeout: cfg.Providers.AlphaVantage.Timeout}
	avClient := alphavantage.NewClient(avHTTP, cfg.Providers.AlphaVantage.BaseURL,
		os.Getenv(cfg.Providers.AlphaVantage.APIKeyEnv))
	bnHTTP := &http.Client{Timeout: cfg.Providers.Binance.Timeout}
	bnClient := binance.NewClient(bnHTTP, cfg.Providers.Binance.BaseURL)

	fetcher := &market.Fetcher{
		Cache:      market.NewCache(time.Now),
		Repo:       store,
		Logger:     logger,
		Routes:     market.DefaultRoutes(bnClient, avClient),
		Indicators: avClient,
		Config:     cfg.Market,
	}

	decisionEngine := engine.New(nil, logger)
	if client := reasoning.NewOpenAIClient(cfg.Reasoning, os.Getenv(cfg.Reasoning.APIKeyEnv)); client != nil {
		decisionEngine.Reasoning = client
		logger.Info("reasoning service enabled", zap.String("model", cfg.Reasoning.Model))
	} else {
		logger.Info("reasoning credential missing, decisions use local heuristic")
	}

	scan := &scanner.Scanner{
		Repo:    store,
		Fetcher: fetcher,
		Engine:  decisionEngine,
		Logger:  logger,
		Config:  cfg.Scanner,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.UseJSONFieldNames()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.RequireBearer(cfg.Auth))

	health := &handler.HealthHandler{DB: dbConn}
	health.Register(router)

	signalHandler := &handler.SignalHandler{Repo: store, Scanner: scan}
	signalHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scanner.SeedOnStart {
		if err := scan.SeedShowcaseSignals(ctx); err != nil {
			logger.Warn("showcase seed failed", zap.Error(err))
		}
	}

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add(cfg.Cron.Scan, func(ctx context.Context) {
			scan.Scan(ctx)
		})
		if err != nil {
			logger.Warn("cron register scan failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	} else if cfg.Scanner.Interval > 0 {
		logger.Info("cron disabled, scanning on plain ticker",
			zap.Duration("interval", cfg.Scanner.Interval))
		go scan.Run(ctx, cfg.Scanner.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

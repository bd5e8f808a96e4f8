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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"carbid/internal/bidding"
	"carbid/internal/config"
	cronrunner "carbid/internal/cron"
	"carbid/internal/db"
	"carbid/internal/dispute"
	"carbid/internal/escrow"
	"carbid/internal/events"
	"carbid/internal/handler"
	"carbid/internal/lifecycle"
	"carbid/internal/logger"
	"carbid/internal/middleware"
	gormrepository "carbid/internal/repository/gorm"
	"carbid/internal/wallet"

	_ "carbid/docs"
)

func main() {
	cfgPath := os.Getenv("CB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CB_ENV_ONLY"); envOnlyRaw != "" {
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

	dbConn, err := db.Open(cfg.DB)
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

	store := gormrepository.New(dbConn.Gorm)
	ledger := &wallet.Ledger{Repo: store}
	hub := events.NewHub(logger)

	bidEngine := &bidding.Engine{
		Repo:   store,
		Ledger: ledger,
		Hub:    hub,
		Config: cfg.Auction,
		Logger: logger,
	}
	escrowEngine := &escrow.Engine{
		Repo:   store,
		Ledger: ledger,
		Config: cfg.Escrow,
		Logger: logger,
	}
	resolver := &dispute.Resolver{Repo: store, Logger: logger}
	manager := &lifecycle.Manager{
		Repo:   store,
		Ledger: ledger,
		Escrow: escrowEngine,
		Config: cfg.Settlement,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.RequireBearer())
	engine.Use(middleware.WriteAudit(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	auctionHandler := &handler.AuctionHandler{Repo: store}
	auctionHandler.Register(engine)
	bidHandler := &handler.BidHandler{Engine: bidEngine}
	bidHandler.Register(engine)
	escrowHandler := &handler.EscrowHandler{Engine: escrowEngine, Resolver: resolver}
	escrowHandler.Register(engine)
	walletHandler := &handler.WalletHandler{Repo: store, Ledger: ledger}
	walletHandler.Register(engine)
	sweepHandler := &handler.SweepHandler{Manager: manager}
	sweepHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger}
	streamHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.Lifecycle, func(ctx context.Context) {
			result, err := manager.SweepLifecycle(ctx)
			if err != nil {
				logger.Warn("cron lifecycle sweep failed", zap.Error(err))
				return
			}
			if result.Activated > 0 || result.Ended > 0 {
				logger.Info("cron lifecycle sweep ok",
					zap.Int("activated", result.Activated),
					zap.Int("ended", result.Ended),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register lifecycle sweep failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.SettlementTimeout, func(ctx context.Context) {
			result, err := manager.SweepSettlementTimeouts(ctx)
			if err != nil {
				logger.Warn("cron settlement timeout sweep failed", zap.Error(err))
				return
			}
			if result.Forfeited > 0 {
				logger.Info("cron settlement timeout sweep ok",
					zap.Int("forfeited", result.Forfeited),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register settlement timeout sweep failed", zap.Error(err))
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

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
